package filedesc

import (
	"fmt"

	"github.com/weberc2/konixfs/pkg/inode"
	. "github.com/weberc2/konixfs/pkg/types"
)

// FileTables resolves a process number to its file table.
type FileTables interface {
	Files(pid ProcNr) (*Files, error)
}

type Inodes interface {
	Retain(h inode.Handle) error
	Release(h inode.Handle) error
}

// Bridge performs the file-related halves of fork and exit.
type Bridge struct {
	Procs  FileTables
	Descs  *Table
	Inodes Inodes
}

// OnFork accounts for a child whose file table was just copied from its
// parent: every shared descriptor, and the inode behind it, gains a
// reference.
func (b *Bridge) OnFork(child ProcNr) error {
	files, err := b.Procs.Files(child)
	if err != nil {
		return fmt.Errorf("forking `%d`: %w", child, err)
	}
	for fd, h := range files {
		if h == NilHandle {
			continue
		}
		if err := b.Descs.Retain(h); err != nil {
			return fmt.Errorf("forking `%d`: fd `%d`: %w", child, fd, err)
		}
		if err := b.Inodes.Retain(b.Descs.Get(h).Inode); err != nil {
			return fmt.Errorf("forking `%d`: fd `%d`: %w", child, fd, err)
		}
	}
	return nil
}

// OnExit drops every reference held by `pid`'s file table and clears it.
func (b *Bridge) OnExit(pid ProcNr) error {
	files, err := b.Procs.Files(pid)
	if err != nil {
		return fmt.Errorf("exiting `%d`: %w", pid, err)
	}
	for fd, h := range files {
		if h == NilHandle {
			continue
		}
		desc := b.Descs.Get(h)
		if desc == nil {
			return fmt.Errorf(
				"exiting `%d`: fd `%d`: %w",
				pid,
				fd,
				Fatalf("stale descriptor `%d`", h),
			)
		}
		if err := b.Inodes.Release(desc.Inode); err != nil {
			return fmt.Errorf("exiting `%d`: fd `%d`: %w", pid, fd, err)
		}
		if _, err := b.Descs.Put(h); err != nil {
			return fmt.Errorf("exiting `%d`: fd `%d`: %w", pid, fd, err)
		}
		files[fd] = NilHandle
	}
	return nil
}
