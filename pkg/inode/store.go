package inode

import (
	"context"
	"fmt"

	"github.com/weberc2/konixfs/pkg/encode"
	. "github.com/weberc2/konixfs/pkg/types"
)

type Device interface {
	ReadSector(ctx context.Context, dev Dev, sector Sector, buf []byte) error
	WriteSector(ctx context.Context, dev Dev, sector Sector, buf []byte) error
}

// VolumeStore reads and writes inode records in a volume's inode table.
// Records share sectors, so every write is a read-modify-write of the
// containing sector.
type VolumeStore struct {
	device Device
}

func NewVolumeStore(device Device) VolumeStore {
	return VolumeStore{device}
}

func (store VolumeStore) Get(
	ctx context.Context,
	sb *Superblock,
	ino Ino,
	output *InodeRecord,
) error {
	sector, offset := sb.InodeLocation(ino)
	buf := make([]byte, SectorSize)
	if err := store.device.ReadSector(ctx, sb.Dev, sector, buf); err != nil {
		return fmt.Errorf(
			"reading inode `%d` from sector `%d` of `%s`: %w",
			ino,
			sector,
			sb.Dev,
			err,
		)
	}
	encode.DecodeInode(output, buf[offset:offset+InodeRecordSize])
	return nil
}

func (store VolumeStore) Put(
	ctx context.Context,
	sb *Superblock,
	ino Ino,
	record *InodeRecord,
) error {
	sector, offset := sb.InodeLocation(ino)
	buf := make([]byte, SectorSize)
	if err := store.device.ReadSector(ctx, sb.Dev, sector, buf); err != nil {
		return fmt.Errorf(
			"writing inode `%d`: reading sector `%d` of `%s`: %w",
			ino,
			sector,
			sb.Dev,
			err,
		)
	}
	encode.EncodeInode(record, buf[offset:offset+InodeRecordSize])
	if err := store.device.WriteSector(ctx, sb.Dev, sector, buf); err != nil {
		return fmt.Errorf(
			"writing inode `%d` to sector `%d` of `%s`: %w",
			ino,
			sector,
			sb.Dev,
			err,
		)
	}
	return nil
}
