// Package config loads the host process's configuration: an optional YAML
// file overlaid by `KONIXFS_*` environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/weberc2/konixfs/pkg/filedesc"
	"github.com/weberc2/konixfs/pkg/inode"
	"github.com/weberc2/konixfs/pkg/layout"
	"github.com/weberc2/konixfs/pkg/proc"
	"github.com/weberc2/konixfs/pkg/super"
)

const (
	envVarPrefix = "KONIXFS"
	appName      = "konixfs"

	DefaultDiskSectors uint32 = 20000
	MaxConsoles               = 8
	DefaultDriverRetries      = 3
)

type Config struct {
	DiskImage   string `envconfig:"DISK_IMAGE"   yaml:"diskImage"`
	DiskSectors uint32 `envconfig:"DISK_SECTORS" yaml:"diskSectors"`

	// Format lays out an empty volume at boot.
	Format             bool   `envconfig:"FORMAT"               yaml:"format"`
	Consoles           int    `envconfig:"CONSOLES"             yaml:"consoles"`
	DefaultFileSectors uint32 `envconfig:"DEFAULT_FILE_SECTORS" yaml:"defaultFileSectors"`

	SuperSlots int `envconfig:"SUPER_SLOTS" yaml:"superSlots"`
	InodeSlots int `envconfig:"INODE_SLOTS" yaml:"inodeSlots"`
	DescSlots  int `envconfig:"DESC_SLOTS"  yaml:"descSlots"`
	Procs      int `envconfig:"PROCS"       yaml:"procs"`

	DriverRetries int           `envconfig:"DRIVER_RETRIES" yaml:"driverRetries"`
	DriverTimeout time.Duration `envconfig:"DRIVER_TIMEOUT" yaml:"driverTimeout"`

	// IntrospectAddr enables the HTTP view of the FS tables when set.
	IntrospectAddr string `envconfig:"INTROSPECT_ADDR" yaml:"introspectAddr"`
	LogLevel       string `envconfig:"LOG_LEVEL"       yaml:"logLevel"`

	Snapshots Snapshots `envconfig:"SNAPSHOT" yaml:"snapshots"`
}

// Snapshots selects where volume snapshots go: a local directory when `Dir`
// is set, S3 otherwise.
type Snapshots struct {
	Bucket   string `envconfig:"BUCKET"   yaml:"bucket"`
	Label    string `envconfig:"LABEL"    yaml:"label"`
	Dir      string `envconfig:"DIR"      yaml:"dir"`
	Region   string `envconfig:"REGION"   yaml:"region"`
	Endpoint string `envconfig:"ENDPOINT" yaml:"endpoint"`
}

func Default() Config {
	return Config{
		DiskImage:          appName + ".img",
		DiskSectors:        DefaultDiskSectors,
		Consoles:           layout.DefaultConsoles,
		DefaultFileSectors: layout.DefaultFileSectors,
		SuperSlots:         super.DefaultSlots,
		InodeSlots:         inode.DefaultSlots,
		DescSlots:          filedesc.DefaultSlots,
		Procs:              proc.DefaultProcs,
		DriverRetries:      DefaultDriverRetries,
		LogLevel:           logrus.InfoLevel.String(),
		Snapshots: Snapshots{
			Bucket: appName + "-snapshots",
			Label:  "root",
			Region: "us-east-1",
		},
	}
}

// Load starts from `Default()`, applies the YAML file named by
// `KONIXFS_CONFIG_FILE` (or `~/.config/konixfs.yaml`, if present), then the
// environment.
func Load() (*Config, error) {
	c := Default()

	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	required := configFile != ""
	if !required {
		home, err := os.UserHomeDir()
		if err == nil {
			configFile = filepath.Join(home, ".config", appName+".yaml")
		}
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if required || !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.DiskImage == "" {
			return "diskImage", "DISK_IMAGE"
		}
		if c.DiskSectors == 0 {
			return "diskSectors", "DISK_SECTORS"
		}
		if c.DefaultFileSectors == 0 {
			return "defaultFileSectors", "DEFAULT_FILE_SECTORS"
		}
		if c.SuperSlots < 1 {
			return "superSlots", "SUPER_SLOTS"
		}
		if c.InodeSlots < 1 {
			return "inodeSlots", "INODE_SLOTS"
		}
		if c.DescSlots < 1 {
			return "descSlots", "DESC_SLOTS"
		}
		if c.Procs < 1 {
			return "procs", "PROCS"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}
	if c.Consoles < 1 || c.Consoles > MaxConsoles {
		return fmt.Errorf(
			"consoles: wanted `1` to `%d`; found `%d`",
			MaxConsoles,
			c.Consoles,
		)
	}
	if c.DriverRetries < 0 {
		return fmt.Errorf("driverRetries: negative value `%d`", c.DriverRetries)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	return nil
}

func (c *Config) Layout() layout.Params {
	return layout.Params{
		Consoles:           c.Consoles,
		DefaultFileSectors: c.DefaultFileSectors,
	}
}

// Logger returns a JSON logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}
