// Package super keeps the superblocks of loaded volumes in a fixed set of
// slots. A slot whose `Dev` is `NoDev` is free.
package super

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/encode"
	. "github.com/weberc2/konixfs/pkg/types"
)

const (
	DefaultSlots = 8

	// superblockSector is the sector holding the superblock; sector 0 is
	// the boot sector.
	superblockSector Sector = 1
)

type Device interface {
	ReadSector(ctx context.Context, dev Dev, sector Sector, buf []byte) error
}

type Registry struct {
	device Device
	slots  []Superblock
	log    logrus.FieldLogger
}

func NewRegistry(device Device, slots int, log logrus.FieldLogger) *Registry {
	return &Registry{
		device: device,
		slots:  make([]Superblock, slots),
		log:    log,
	}
}

// Load reads the superblock of `dev` from disk into the first free slot.
// Loading a device twice, running out of slots, and a bad magic are all
// fatal.
func (r *Registry) Load(ctx context.Context, dev Dev) (*Superblock, error) {
	if dev == NoDev {
		return nil, Fatalf("loading superblock: invalid device `%s`", dev)
	}
	free := -1
	for i := range r.slots {
		if r.slots[i].Dev == dev {
			return nil, Fatalf(
				"loading superblock: device `%s` already loaded in slot `%d`",
				dev,
				i,
			)
		}
		if free < 0 && r.slots[i].Dev == NoDev {
			free = i
		}
	}
	if free < 0 {
		return nil, Fatalf(
			"loading superblock of `%s`: all `%d` slots in use",
			dev,
			len(r.slots),
		)
	}

	buf := make([]byte, SectorSize)
	if err := r.device.ReadSector(ctx, dev, superblockSector, buf); err != nil {
		return nil, fmt.Errorf("loading superblock of `%s`: %w", dev, err)
	}
	sb := Superblock{Dev: dev}
	if err := encode.DecodeSuperblock(&sb, buf); err != nil {
		if errors.Is(err, encode.BadMagicErr) {
			return nil, FatalWrap(err, "loading superblock of `%s`", dev)
		}
		return nil, fmt.Errorf("loading superblock of `%s`: %w", dev, err)
	}

	r.slots[free] = sb
	r.log.WithFields(logrus.Fields{
		"dev":         dev.String(),
		"slot":        free,
		"sectors":     sb.NrSectors,
		"firstSector": sb.FirstSector,
	}).Info("loaded superblock")
	return &r.slots[free], nil
}

// Lookup returns the superblock of `dev`. A device that was never loaded is
// fatal.
func (r *Registry) Lookup(dev Dev) (*Superblock, error) {
	if dev != NoDev {
		for i := range r.slots {
			if r.slots[i].Dev == dev {
				return &r.slots[i], nil
			}
		}
	}
	return nil, Fatalf("superblock of device `%s` not loaded", dev)
}

// Snapshot returns copies of the occupied slots.
func (r *Registry) Snapshot() []Superblock {
	out := make([]Superblock, 0, len(r.slots))
	for i := range r.slots {
		if r.slots[i].Dev != NoDev {
			out = append(out, r.slots[i])
		}
	}
	return out
}
