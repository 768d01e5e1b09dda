package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/weberc2/konixfs/pkg/gateway"
	"github.com/weberc2/konixfs/pkg/inode"
	"github.com/weberc2/konixfs/pkg/layout"
	"github.com/weberc2/konixfs/pkg/super"
	. "github.com/weberc2/konixfs/pkg/types"
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", data)
	return err
}

func mkfs(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	image, sectors, err := openImage(cfg.DiskImage, true, cfg.DiskSectors)
	if err != nil {
		return err
	}
	defer image.Close()

	return withDisk(
		c.Context,
		image,
		sectors,
		log,
		func(ctx context.Context, gw *gateway.Gateway) error {
			sb, err := layout.Format(ctx, gw, RootDev, cfg.Layout(), log)
			if err != nil {
				return err
			}
			return printJSON(sb)
		},
	)
}

func inspect(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	image, sectors, err := openImage(cfg.DiskImage, false, 0)
	if err != nil {
		return err
	}
	defer image.Close()

	return withDisk(
		c.Context,
		image,
		sectors,
		log,
		func(ctx context.Context, gw *gateway.Gateway) error {
			supers := super.NewRegistry(gw, 1, log)
			sb, err := supers.Load(ctx, RootDev)
			if err != nil {
				return err
			}
			inodes := inode.NewCache(supers, gw, cfg.Consoles+1, log)
			for i := 0; i <= cfg.Consoles; i++ {
				if _, err := inodes.Acquire(
					ctx,
					RootDev,
					sb.RootInode+Ino(i),
				); err != nil {
					return err
				}
			}
			return printJSON(struct {
				Superblock *Superblock   `json:"superblock"`
				Inodes     []inode.Inode `json:"inodes"`
			}{sb, inodes.Snapshot()})
		},
	)
}
