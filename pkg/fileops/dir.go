package fileops

import (
	"context"
	"errors"
	"fmt"

	"github.com/weberc2/konixfs/pkg/encode"
	. "github.com/weberc2/konixfs/pkg/types"
)

func isErrno(err error, errno Errno) bool { return errors.Is(err, errno) }

func (ops *Ops) rootInode() (*Superblock, *InodeRecord, error) {
	sb, err := ops.Supers.Lookup(ops.Dev)
	if err != nil {
		return nil, nil, err
	}
	root := ops.Inodes.Inode(ops.Root)
	if root == nil || root.Count < 1 {
		return nil, nil, Fatalf("root inode is not held")
	}
	return sb, &root.InodeRecord, nil
}

// entryLocation returns the sector and offset of the `i`th entry of the root
// directory.
func entryLocation(root *InodeRecord, i int) (Sector, Byte) {
	pos := Byte(i) * DirEntrySize
	return root.StartSector + Sector(pos/SectorSize), pos % SectorSize
}

// entries calls `visit` with each record of the root directory, free ones
// included, until `visit` returns false.
func (ops *Ops) entries(
	ctx context.Context,
	visit func(i int, entry *DirEntry) bool,
) error {
	_, root, err := ops.rootInode()
	if err != nil {
		return err
	}
	buf := make([]byte, SectorSize)
	loaded := Sector(0)
	count := int(root.Size / DirEntrySize)
	for i := 0; i < count; i++ {
		sector, offset := entryLocation(root, i)
		if loaded != sector {
			if err := ops.Device.ReadSector(ctx, ops.Dev, sector, buf); err != nil {
				return fmt.Errorf("reading root directory: %w", err)
			}
			loaded = sector
		}
		var entry DirEntry
		encode.DecodeDirEntry(&entry, buf[offset:offset+DirEntrySize])
		if !visit(i, &entry) {
			return nil
		}
	}
	return nil
}

// lookup finds `name` in the root directory and returns its inode and entry
// index. The empty name is the root directory itself.
func (ops *Ops) lookup(ctx context.Context, name string) (Ino, int, error) {
	if name == "" {
		return InoRoot, -1, nil
	}
	ino, index := InoNil, -1
	if err := ops.entries(ctx, func(i int, entry *DirEntry) bool {
		if entry.Ino != InoNil && entry.Name == name {
			ino, index = entry.Ino, i
			return false
		}
		return true
	}); err != nil {
		return InoNil, -1, err
	}
	if ino == InoNil {
		return InoNil, -1, fmt.Errorf("`%s`: %w", name, ENOENT)
	}
	return ino, index, nil
}

// putEntry writes `entry` as the `i`th record of the root directory.
func (ops *Ops) putEntry(ctx context.Context, i int, entry *DirEntry) error {
	_, root, err := ops.rootInode()
	if err != nil {
		return err
	}
	sector, offset := entryLocation(root, i)
	buf := make([]byte, SectorSize)
	if err := ops.Device.ReadSector(ctx, ops.Dev, sector, buf); err != nil {
		return fmt.Errorf("writing directory entry `%d`: %w", i, err)
	}
	encode.EncodeDirEntry(entry, buf[offset:offset+DirEntrySize])
	if err := ops.Device.WriteSector(ctx, ops.Dev, sector, buf); err != nil {
		return fmt.Errorf("writing directory entry `%d`: %w", i, err)
	}
	return nil
}

// addEntry links `ino` into the root directory under `name`, reusing the
// first free record or else growing the directory by one record.
func (ops *Ops) addEntry(ctx context.Context, ino Ino, name string) error {
	_, root, err := ops.rootInode()
	if err != nil {
		return err
	}
	free := -1
	if err := ops.entries(ctx, func(i int, entry *DirEntry) bool {
		if entry.Ino == InoNil {
			free = i
			return false
		}
		return true
	}); err != nil {
		return err
	}

	grow := free < 0
	if grow {
		free = int(root.Size / DirEntrySize)
		if root.Size+DirEntrySize > Byte(root.NrSectors)*SectorSize {
			return fmt.Errorf("adding `%s` to root directory: %w", name, ENOSPC)
		}
	}
	if err := ops.putEntry(ctx, free, &DirEntry{Ino: ino, Name: name}); err != nil {
		return err
	}
	if grow {
		root.Size += DirEntrySize
		if err := ops.Inodes.Flush(ctx, ops.Root); err != nil {
			return fmt.Errorf("growing root directory: %w", err)
		}
	}
	return nil
}
