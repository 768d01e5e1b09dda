package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/konixfs/pkg/config"
)

var (
	imageFlag = cli.StringFlag{
		Name:    "image",
		Aliases: []string{"i"},
		Usage:   "path to the disk image (overrides KONIXFS_DISK_IMAGE)",
	}
	sectorsFlag = cli.UintFlag{
		Name:  "sectors",
		Usage: "size of a new disk image in sectors",
	}
	formatFlag = cli.BoolFlag{
		Name:  "format",
		Usage: "lay out an empty volume before booting",
	}
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "address for the introspection server (empty disables it)",
	}
	outFlag = cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "where to write the restored image (defaults to the disk image)",
	}
)

func main() {
	app := cli.App{
		Name:  "konixfs",
		Usage: "a message-passing file system task over a disk image",
		Flags: []cli.Flag{&imageFlag},
		Commands: []*cli.Command{
			{
				Name:   "mkfs",
				Usage:  "create a disk image holding an empty volume",
				Flags:  []cli.Flag{&sectorsFlag},
				Action: mkfs,
			},
			{
				Name:   "inspect",
				Usage:  "print a volume's superblock and root inodes as JSON",
				Action: inspect,
			},
			{
				Name:   "boot",
				Usage:  "run the drivers, the FS task and a shell on console 0",
				Flags:  []cli.Flag{&formatFlag, &addrFlag},
				Action: boot,
			},
			{
				Name:  "snapshot",
				Usage: "store and restore compressed disk images",
				Subcommands: []*cli.Command{
					{
						Name:   "put",
						Usage:  "store the disk image under the configured label",
						Action: snapshotPut,
					},
					{
						Name:      "get",
						Usage:     "restore a stored image",
						ArgsUsage: "KEY",
						Flags:     []cli.Flag{&outFlag},
						Action:    snapshotGet,
					},
					{
						Name:   "list",
						Usage:  "list the images stored under the configured label",
						Action: snapshotList,
					},
					{
						Name:      "rm",
						Usage:     "delete a stored image",
						ArgsUsage: "KEY",
						Action:    snapshotRemove,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates the configuration with command-line overrides
// applied, and returns a logger tagged with a fresh boot id.
func setup(c *cli.Context) (*config.Config, logrus.FieldLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if c.IsSet(imageFlag.Name) {
		cfg.DiskImage = c.String(imageFlag.Name)
	}
	if c.IsSet(sectorsFlag.Name) {
		cfg.DiskSectors = uint32(c.Uint(sectorsFlag.Name))
	}
	if c.IsSet(formatFlag.Name) {
		cfg.Format = c.Bool(formatFlag.Name)
	}
	if c.IsSet(addrFlag.Name) {
		cfg.IntrospectAddr = c.String(addrFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger().WithField("boot", uuid.New().String()), nil
}
