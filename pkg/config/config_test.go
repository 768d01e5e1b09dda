package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "konixfs.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("KONIXFS_CONFIG_FILE", path)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	writeConfigFile(t, strings.Join([]string{
		"diskImage: /var/lib/konixfs/root.img",
		"consoles: 2",
		"driverTimeout: 250ms",
		"snapshots:",
		"  bucket: volumes",
	}, "\n"))
	t.Setenv("KONIXFS_CONSOLES", "4")
	t.Setenv("KONIXFS_SNAPSHOT_LABEL", "Home Volume")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load(): unexpected err: %v", err)
	}
	if c.DiskImage != "/var/lib/konixfs/root.img" {
		t.Fatalf("diskImage: wanted `/var/lib/konixfs/root.img`; found `%s`", c.DiskImage)
	}
	if c.Consoles != 4 {
		t.Fatalf("consoles: wanted `4`; found `%d`", c.Consoles)
	}
	if c.DriverTimeout != 250*time.Millisecond {
		t.Fatalf("driverTimeout: wanted `250ms`; found `%s`", c.DriverTimeout)
	}
	if c.Snapshots.Bucket != "volumes" || c.Snapshots.Label != "Home Volume" {
		t.Fatalf(
			"snapshots: wanted `volumes`/`Home Volume`; found `%s`/`%s`",
			c.Snapshots.Bucket,
			c.Snapshots.Label,
		)
	}

	// unset values keep their defaults
	if wanted := Default(); c.InodeSlots != wanted.InodeSlots {
		t.Fatalf("inodeSlots: wanted `%d`; found `%d`", wanted.InodeSlots, c.InodeSlots)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate(): unexpected err: %v", err)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	writeConfigFile(t, "diskImgae: typo.img\n")
	if _, err := Load(); err == nil {
		t.Fatal("Load(): wanted error for unknown field; found `nil`")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("KONIXFS_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("Load(): wanted error for missing file; found `nil`")
	}
}

func TestValidate(t *testing.T) {
	for _, testCase := range []struct {
		name   string
		modify func(*Config)
		wanted string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:   "no-image",
			modify: func(c *Config) { c.DiskImage = "" },
			wanted: "KONIXFS_DISK_IMAGE",
		},
		{
			name:   "no-file-sectors",
			modify: func(c *Config) { c.DefaultFileSectors = 0 },
			wanted: "KONIXFS_DEFAULT_FILE_SECTORS",
		},
		{
			name:   "too-many-consoles",
			modify: func(c *Config) { c.Consoles = MaxConsoles + 1 },
			wanted: "consoles",
		},
		{
			name:   "bad-log-level",
			modify: func(c *Config) { c.LogLevel = "chatty" },
			wanted: "logLevel",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			c := Default()
			testCase.modify(&c)
			err := c.Validate()
			if testCase.wanted == "" {
				if err != nil {
					t.Fatalf("wanted `nil`; found `%v`", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), testCase.wanted) {
				t.Fatalf("wanted error mentioning `%s`; found `%v`", testCase.wanted, err)
			}
		})
	}
}
