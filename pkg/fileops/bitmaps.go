package fileops

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/alloc"
	"github.com/weberc2/konixfs/pkg/inode"
	"github.com/weberc2/konixfs/pkg/layout"
	. "github.com/weberc2/konixfs/pkg/types"
)

// sectorStore writes the sectors of an on-disk bitmap that cover its dirty
// byte ranges.
type sectorStore struct {
	device Device
	dev    Dev
	start  Sector
}

func (store *sectorStore) Put(
	ctx context.Context,
	bitmap alloc.Bitmap,
	dirty []alloc.ByteRange,
) error {
	bytes := bitmap.Bytes()
	written := map[Sector]struct{}{}
	for _, r := range dirty {
		first := Byte(r.Start) / SectorSize
		last := Byte(r.End-1) / SectorSize
		for i := first; i <= last; i++ {
			sector := store.start + Sector(i)
			if _, done := written[sector]; done {
				continue
			}
			if err := store.device.WriteSector(
				ctx,
				store.dev,
				sector,
				bytes[i*SectorSize:(i+1)*SectorSize],
			); err != nil {
				return fmt.Errorf("writing bitmap sector `%d`: %w", sector, err)
			}
			written[sector] = struct{}{}
		}
	}
	return nil
}

func (ops *Ops) readBitmap(
	ctx context.Context,
	start Sector,
	sectors uint32,
) (*alloc.FlushableBitmap, error) {
	bytes := make([]byte, Byte(sectors)*SectorSize)
	for i := uint32(0); i < sectors; i++ {
		offset := Byte(i) * SectorSize
		if err := ops.Device.ReadSector(
			ctx,
			ops.Dev,
			start+Sector(i),
			bytes[offset:offset+SectorSize],
		); err != nil {
			return nil, fmt.Errorf("reading bitmap sector `%d`: %w", i, err)
		}
	}
	return alloc.NewFlushable(
		alloc.FromBytes(bytes),
		&sectorStore{device: ops.Device, dev: ops.Dev, start: start},
	), nil
}

// bitmaps loads the inode and sector bitmaps on first use. The FS task is the
// only writer of the volume's metadata, so the loaded copies stay current.
func (ops *Ops) bitmaps(ctx context.Context) (*Superblock, error) {
	sb, err := ops.Supers.Lookup(ops.Dev)
	if err != nil {
		return nil, err
	}
	if ops.imap == nil {
		if ops.imap, err = ops.readBitmap(
			ctx,
			sb.ImapStart(),
			sb.NrImapSectors,
		); err != nil {
			return nil, fmt.Errorf("loading inode bitmap: %w", err)
		}
	}
	if ops.smap == nil {
		if ops.smap, err = ops.readBitmap(
			ctx,
			sb.SmapStart(),
			sb.NrSmapSectors,
		); err != nil {
			return nil, fmt.Errorf("loading sector bitmap: %w", err)
		}
	}
	return sb, nil
}

func (ops *Ops) flushBitmaps(ctx context.Context) error {
	if err := ops.imap.Flush(ctx); err != nil {
		return fmt.Errorf("flushing inode bitmap: %w", err)
	}
	if err := ops.smap.Flush(ctx); err != nil {
		return fmt.Errorf("flushing sector bitmap: %w", err)
	}
	return nil
}

// create allocates an inode and an extent for a new regular file, links it
// into the root directory as `name`, and returns a handle holding one
// reference to it.
func (ops *Ops) create(ctx context.Context, name string) (inode.Handle, error) {
	sb, err := ops.bitmaps(ctx)
	if err != nil {
		return inode.NilHandle, err
	}

	bit, ok := ops.imap.Alloc()
	if ok && bit >= uint64(sb.NrInodes) {
		ops.imap.Free(bit)
		ok = false
	}
	if !ok {
		return inode.NilHandle, fmt.Errorf("allocating inode: %w", ENOSPC)
	}
	limit := layout.SectorBit(sb, Sector(sb.NrSectors))
	first, ok := ops.smap.AllocRun(1, limit, uint64(ops.FileSectors))
	if !ok {
		ops.imap.Free(bit)
		return inode.NilHandle, fmt.Errorf(
			"allocating `%d` contiguous sectors: %w",
			ops.FileSectors,
			ENOSPC,
		)
	}
	if err := ops.flushBitmaps(ctx); err != nil {
		return inode.NilHandle, err
	}

	ino := Ino(bit)
	h, err := ops.Inodes.Acquire(ctx, ops.Dev, ino)
	if err != nil {
		return inode.NilHandle, err
	}
	ops.Inodes.Inode(h).InodeRecord = InodeRecord{
		Mode:        ModeRegular,
		StartSector: layout.BitSector(sb, first),
		NrSectors:   ops.FileSectors,
	}
	if err := ops.Inodes.Flush(ctx, h); err != nil {
		return inode.NilHandle, err
	}
	if err := ops.addEntry(ctx, ino, name); err != nil {
		if isErrno(err, ENOSPC) {
			return inode.NilHandle, ops.discard(ctx, h, err)
		}
		return inode.NilHandle, err
	}
	ops.Log.WithFields(logrus.Fields{
		"ino":   ino,
		"start": layout.BitSector(sb, first),
		"name":  name,
	}).Info("created file")
	return h, nil
}

// discard frees the inode and extent behind `h`, drops the reference to it,
// and returns `cause`.
func (ops *Ops) discard(ctx context.Context, h inode.Handle, cause error) error {
	sb, err := ops.bitmaps(ctx)
	if err != nil {
		return err
	}
	node := ops.Inodes.Inode(h)
	ops.imap.Free(uint64(node.Num))
	ops.smap.FreeRange(
		layout.SectorBit(sb, node.StartSector),
		uint64(node.NrSectors),
	)
	node.InodeRecord = InodeRecord{}
	if err := ops.Inodes.Flush(ctx, h); err != nil {
		return err
	}
	if err := ops.Inodes.Release(h); err != nil {
		return err
	}
	if err := ops.flushBitmaps(ctx); err != nil {
		return err
	}
	return cause
}
