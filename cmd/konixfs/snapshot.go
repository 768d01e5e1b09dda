package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/konixfs/pkg/config"
	"github.com/weberc2/konixfs/pkg/objectstore"
	. "github.com/weberc2/konixfs/pkg/types"
)

func snapshots(cfg *config.Config) (*objectstore.Snapshots, error) {
	var store ObjectStore
	if cfg.Snapshots.Dir != "" {
		store = &objectstore.DirObjectStore{Root: cfg.Snapshots.Dir}
	} else {
		s3Store, err := objectstore.NewS3ObjectStore(
			cfg.Snapshots.Region,
			cfg.Snapshots.Endpoint,
		)
		if err != nil {
			return nil, err
		}
		store = s3Store
	}
	return objectstore.NewSnapshots(store, cfg.Snapshots.Bucket), nil
}

func snapshotPut(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	store, err := snapshots(cfg)
	if err != nil {
		return err
	}
	image, err := os.ReadFile(cfg.DiskImage)
	if err != nil {
		return fmt.Errorf("reading disk image: %w", err)
	}
	key, err := store.Put(cfg.Snapshots.Label, image)
	if err != nil {
		return err
	}
	log.WithField("key", key).Info("stored snapshot")
	fmt.Println(key)
	return nil
}

func snapshotGet(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return fmt.Errorf("snapshot get: wanted `1` argument; found `%d`", c.NArg())
	}
	store, err := snapshots(cfg)
	if err != nil {
		return err
	}
	key := c.Args().First()
	image, err := store.Get(key)
	if err != nil {
		return err
	}
	out := cfg.DiskImage
	if c.IsSet(outFlag.Name) {
		out = c.String(outFlag.Name)
	}
	if err := os.WriteFile(out, image, 0o644); err != nil {
		return fmt.Errorf("writing disk image: %w", err)
	}
	log.WithFields(logrus.Fields{
		"key": key,
		"out": out,
	}).Info("restored snapshot")
	return nil
}

func snapshotList(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	store, err := snapshots(cfg)
	if err != nil {
		return err
	}
	keys, err := store.List(cfg.Snapshots.Label)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func snapshotRemove(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return fmt.Errorf("snapshot rm: wanted `1` argument; found `%d`", c.NArg())
	}
	store, err := snapshots(cfg)
	if err != nil {
		return err
	}
	return store.Delete(c.Args().First())
}
