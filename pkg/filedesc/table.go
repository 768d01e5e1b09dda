// Package filedesc implements the system-wide descriptor table shared by all
// processes, and the fork/exit bookkeeping that keeps descriptor and inode
// reference counts in step with per-process file tables.
package filedesc

import (
	"fmt"

	"github.com/weberc2/konixfs/pkg/inode"
	. "github.com/weberc2/konixfs/pkg/types"
)

const (
	DefaultSlots = 64

	// NrFiles is the size of each process's file table.
	NrFiles = 64
)

// Handle addresses a descriptor slot. Handles are one-based so that a zeroed
// file table holds only `NilHandle`s.
type Handle int

const NilHandle Handle = 0

// Files is a process's file table, indexed by file descriptor.
type Files [NrFiles]Handle

// Descriptor is an open file: the inode it refers to, the current position,
// and the open flags. A slot with a zero `Count` is free.
type Descriptor struct {
	Inode inode.Handle `json:"inode"`
	Pos   Byte         `json:"pos"`
	Mode  int          `json:"mode"`
	Count int          `json:"count"`
}

type Table struct {
	slots []Descriptor
}

func NewTable(slots int) *Table {
	return &Table{slots: make([]Descriptor, slots)}
}

// Alloc claims the first free slot for `ino` with a count of 1. A full table
// is reported as `ENFILE`.
func (t *Table) Alloc(ino inode.Handle, mode int) (Handle, error) {
	for i := range t.slots {
		if t.slots[i].Count == 0 {
			t.slots[i] = Descriptor{Inode: ino, Mode: mode, Count: 1}
			return Handle(i + 1), nil
		}
	}
	return NilHandle, fmt.Errorf(
		"allocating descriptor: all `%d` slots in use: %w",
		len(t.slots),
		ENFILE,
	)
}

// Get returns the descriptor behind `h`, or nil if `h` doesn't name an
// allocated slot.
func (t *Table) Get(h Handle) *Descriptor {
	if h < 1 || int(h) > len(t.slots) || t.slots[h-1].Count < 1 {
		return nil
	}
	return &t.slots[h-1]
}

// Retain takes an additional reference to a descriptor.
func (t *Table) Retain(h Handle) error {
	desc := t.Get(h)
	if desc == nil {
		return Fatalf("retaining unallocated descriptor `%d`", h)
	}
	desc.Count++
	return nil
}

// Put drops a reference and reports whether it was the last one. The last
// reference detaches the inode; releasing the inode itself is the caller's
// job.
func (t *Table) Put(h Handle) (bool, error) {
	desc := t.Get(h)
	if desc == nil {
		return false, Fatalf("putting unallocated descriptor `%d`", h)
	}
	desc.Count--
	if desc.Count == 0 {
		desc.Inode = inode.NilHandle
		return true, nil
	}
	return false, nil
}

// Entry pairs a descriptor with its handle.
type Entry struct {
	Handle Handle `json:"handle"`
	Descriptor
}

// Snapshot returns copies of the allocated slots.
func (t *Table) Snapshot() []Entry {
	var out []Entry
	for i := range t.slots {
		if t.slots[i].Count > 0 {
			out = append(out, Entry{Handle(i + 1), t.slots[i]})
		}
	}
	return out
}
