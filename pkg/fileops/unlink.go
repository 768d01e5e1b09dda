package fileops

import (
	"context"
	"fmt"

	"github.com/weberc2/konixfs/pkg/layout"
	. "github.com/weberc2/konixfs/pkg/types"
)

// Unlink removes the regular file `path`: its directory entry, its inode and
// its extent. Directories and device files can't be unlinked, nor can files
// that are still open.
func (ops *Ops) Unlink(ctx context.Context, path string) error {
	name, err := rootName(path)
	if err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	if name == "" || name == "." {
		return fmt.Errorf("unlinking `%s`: %w", path, EPERM)
	}
	ino, index, err := ops.lookup(ctx, name)
	if err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	if ino == InoRoot {
		return fmt.Errorf("unlinking `%s`: %w", path, EPERM)
	}

	h, err := ops.Inodes.Acquire(ctx, ops.Dev, ino)
	if err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	node := ops.Inodes.Inode(h)
	if !node.Mode.IsRegular() {
		if err := ops.Inodes.Release(h); err != nil {
			return err
		}
		return fmt.Errorf("unlinking `%s`: %w", path, EPERM)
	}
	if node.Count > 1 {
		if err := ops.Inodes.Release(h); err != nil {
			return err
		}
		return fmt.Errorf("unlinking `%s`: %w", path, EBUSY)
	}

	sb, err := ops.bitmaps(ctx)
	if err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	ops.imap.Free(uint64(ino))
	ops.smap.FreeRange(
		layout.SectorBit(sb, node.StartSector),
		uint64(node.NrSectors),
	)
	if err := ops.flushBitmaps(ctx); err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}

	node.InodeRecord = InodeRecord{}
	if err := ops.Inodes.Flush(ctx, h); err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	if err := ops.Inodes.Release(h); err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	if err := ops.putEntry(ctx, index, &DirEntry{}); err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	ops.Log.WithField("ino", ino).WithField("name", name).Info("unlinked file")
	return nil
}
