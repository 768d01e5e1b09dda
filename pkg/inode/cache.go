// Package inode caches inode records in a fixed table of reference-counted
// slots. A slot with a zero count is free and may be reassigned; every
// mutation is written through to disk by `Flush`.
package inode

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	. "github.com/weberc2/konixfs/pkg/types"
)

const DefaultSlots = 64

// Handle addresses a cache slot. Handles are one-based so that the zero
// value is `NilHandle`.
type Handle int

// NilHandle stands for "no inode", the result of acquiring inode 0.
const NilHandle Handle = 0

// Inode is a cached inode record plus the identity and reference count of
// the slot holding it.
type Inode struct {
	InodeRecord
	Dev   Dev `json:"dev"`
	Num   Ino `json:"num"`
	Count int `json:"count"`
}

type Superblocks interface {
	Lookup(dev Dev) (*Superblock, error)
}

type Cache struct {
	supers Superblocks
	store  VolumeStore
	slots  []Inode
	log    logrus.FieldLogger
}

func NewCache(
	supers Superblocks,
	device Device,
	slots int,
	log logrus.FieldLogger,
) *Cache {
	return &Cache{
		supers: supers,
		store:  NewVolumeStore(device),
		slots:  make([]Inode, slots),
		log:    log,
	}
}

// Acquire returns a handle to inode `num` of `dev` and takes a reference to
// it. If the inode isn't cached it is read into the first free slot. Inode 0
// yields `NilHandle`. A full cache is fatal.
func (c *Cache) Acquire(ctx context.Context, dev Dev, num Ino) (Handle, error) {
	if num == InoNil {
		return NilHandle, nil
	}

	free := NilHandle
	for i := range c.slots {
		slot := &c.slots[i]
		if slot.Count > 0 {
			if slot.Dev == dev && slot.Num == num {
				slot.Count++
				return Handle(i + 1), nil
			}
		} else if free == NilHandle {
			free = Handle(i + 1)
		}
	}
	if free == NilHandle {
		return NilHandle, Fatalf(
			"acquiring inode `%d` of `%s`: all `%d` cache slots in use",
			num,
			dev,
			len(c.slots),
		)
	}

	sb, err := c.supers.Lookup(dev)
	if err != nil {
		return NilHandle, fmt.Errorf("acquiring inode `%d`: %w", num, err)
	}
	var record InodeRecord
	if err := c.store.Get(ctx, sb, num, &record); err != nil {
		return NilHandle, fmt.Errorf("acquiring inode `%d`: %w", num, err)
	}
	*c.Inode(free) = Inode{
		InodeRecord: record,
		Dev:         dev,
		Num:         num,
		Count:       1,
	}
	c.log.WithFields(logrus.Fields{
		"dev":  dev.String(),
		"ino":  num,
		"slot": free,
		"mode": record.Mode.String(),
	}).Debug("cached inode")
	return free, nil
}

// Retain takes an additional reference to a cached inode.
func (c *Cache) Retain(h Handle) error {
	slot, err := c.slot(h)
	if err != nil {
		return fmt.Errorf("retaining inode: %w", err)
	}
	slot.Count++
	return nil
}

// Release drops a reference. Releasing an unreferenced slot is fatal.
func (c *Cache) Release(h Handle) error {
	slot, err := c.slot(h)
	if err != nil {
		return fmt.Errorf("releasing inode: %w", err)
	}
	slot.Count--
	return nil
}

// Flush writes the slot's record back to its place in the inode table.
func (c *Cache) Flush(ctx context.Context, h Handle) error {
	slot, err := c.slot(h)
	if err != nil {
		return fmt.Errorf("flushing inode: %w", err)
	}
	sb, err := c.supers.Lookup(slot.Dev)
	if err != nil {
		return fmt.Errorf("flushing inode `%d`: %w", slot.Num, err)
	}
	if err := c.store.Put(ctx, sb, slot.Num, &slot.InodeRecord); err != nil {
		return fmt.Errorf("flushing inode `%d`: %w", slot.Num, err)
	}
	return nil
}

// Inode returns the slot behind `h` for reading and mutation, or nil for
// `NilHandle`. Mutations reach the disk only through `Flush`.
func (c *Cache) Inode(h Handle) *Inode {
	if h < 1 || int(h) > len(c.slots) {
		return nil
	}
	return &c.slots[h-1]
}

// Refs returns how many references are held on inode `num` of `dev`.
func (c *Cache) Refs(dev Dev, num Ino) int {
	for i := range c.slots {
		if c.slots[i].Count > 0 &&
			c.slots[i].Dev == dev &&
			c.slots[i].Num == num {
			return c.slots[i].Count
		}
	}
	return 0
}

// Snapshot returns copies of the referenced slots.
func (c *Cache) Snapshot() []Inode {
	var out []Inode
	for i := range c.slots {
		if c.slots[i].Count > 0 {
			out = append(out, c.slots[i])
		}
	}
	return out
}

func (c *Cache) slot(h Handle) (*Inode, error) {
	slot := c.Inode(h)
	if slot == nil {
		return nil, Fatalf("invalid inode handle `%d`", h)
	}
	if slot.Count < 1 {
		return nil, Fatalf(
			"inode `%d` of `%s` in slot `%d` has no references",
			slot.Num,
			slot.Dev,
			h,
		)
	}
	return slot, nil
}
