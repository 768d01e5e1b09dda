// Package layout formats a raw partition into an empty volume: a superblock,
// an inode bitmap, a sector bitmap, the inode table, and a root directory
// listing one character-special file per console.
package layout

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/alloc"
	"github.com/weberc2/konixfs/pkg/encode"
	"github.com/weberc2/konixfs/pkg/math"
	. "github.com/weberc2/konixfs/pkg/types"
)

const (
	DefaultConsoles           = 3
	DefaultFileSectors uint32 = 2048

	// superblockFill pads the superblock sector past the record.
	superblockFill byte = 0x90

	bitsPerSector = uint32(SectorSize) * 8
)

type Params struct {
	Consoles           int
	DefaultFileSectors uint32
}

func DefaultParams() Params {
	return Params{
		Consoles:           DefaultConsoles,
		DefaultFileSectors: DefaultFileSectors,
	}
}

// Device is the block I/O the builder needs.
type Device interface {
	Geometry(ctx context.Context, dev Dev) (Geometry, error)
	WriteSector(ctx context.Context, dev Dev, sector Sector, buf []byte) error
}

// Compute derives the superblock of a volume spanning `sectors` sectors.
// Volumes too small to hold the metadata plus the root directory's extent
// are fatal.
func Compute(sectors uint32, params Params) (Superblock, error) {
	if params.Consoles < 1 {
		return Superblock{}, Fatalf(
			"computing layout: console count `%d` must be positive",
			params.Consoles,
		)
	}
	if uint32(params.Consoles+1)*uint32(InodeRecordSize) > uint32(SectorSize) {
		return Superblock{}, Fatalf(
			"computing layout: `%d` consoles overflow the first inode "+
				"table sector",
			params.Consoles,
		)
	}

	sb := encode.NewSuperblockV1()
	sb.NrSectors = sectors
	sb.NrInodes = bitsPerSector
	sb.NrInodeSectors = math.DivRoundUp(
		sb.NrInodes*uint32(InodeRecordSize),
		uint32(SectorSize),
	)
	sb.NrImapSectors = 1
	sb.NrSmapSectors = sectors/bitsPerSector + 1
	sb.FirstSector = Sector(
		2 + sb.NrImapSectors + sb.NrSmapSectors + sb.NrInodeSectors,
	)

	if sb.NrInodeSectors < 1 || params.DefaultFileSectors < 1 {
		return Superblock{}, Fatalf(
			"computing layout: inode table of `%d` sectors and default "+
				"extent of `%d` sectors must both be positive",
			sb.NrInodeSectors,
			params.DefaultFileSectors,
		)
	}
	if uint64(sb.FirstSector)+uint64(params.DefaultFileSectors) >
		uint64(sectors) {
		return Superblock{}, Fatalf(
			"computing layout: volume of `%d` sectors can't hold `%d` "+
				"metadata sectors plus a `%d`-sector root directory",
			sectors,
			sb.FirstSector,
			params.DefaultFileSectors,
		)
	}
	return sb, nil
}

// SectorBit returns the sector-bitmap bit covering `sector`. Bit 0 is
// reserved, so bit 1 is the first data sector.
func SectorBit(sb *Superblock, sector Sector) uint64 {
	return uint64(sector-sb.FirstSector) + 1
}

// BitSector is the inverse of `SectorBit`.
func BitSector(sb *Superblock, bit uint64) Sector {
	return sb.FirstSector + Sector(bit-1)
}

// ConsoleIno returns the inode of `/dev_tty<i>`.
func ConsoleIno(i int) Ino { return InoRoot + 1 + Ino(i) }

func ConsoleName(i int) string { return fmt.Sprintf("dev_tty%d", i) }

// Format writes an empty volume to `dev`, sized by the geometry the driver
// reports, and returns its superblock.
func Format(
	ctx context.Context,
	device Device,
	dev Dev,
	params Params,
	log logrus.FieldLogger,
) (Superblock, error) {
	geo, err := device.Geometry(ctx, dev)
	if err != nil {
		return Superblock{}, fmt.Errorf("formatting `%s`: %w", dev, err)
	}
	sb, err := Compute(geo.Size, params)
	if err != nil {
		return Superblock{}, fmt.Errorf("formatting `%s`: %w", dev, err)
	}
	sb.Dev = dev

	log.WithFields(logrus.Fields{
		"dev":          dev.String(),
		"base":         geo.Base,
		"sectors":      sb.NrSectors,
		"imapSectors":  sb.NrImapSectors,
		"smapSectors":  sb.NrSmapSectors,
		"inodeSectors": sb.NrInodeSectors,
		"firstSector":  sb.FirstSector,
	}).Info("formatting volume")

	for _, step := range []struct {
		name  string
		write func(context.Context, Device, *Superblock, Params) error
	}{
		{"superblock", writeSuperblock},
		{"inode bitmap", writeInodeBitmap},
		{"sector bitmap", writeSectorBitmap},
		{"inode table", writeInodeTable},
		{"root directory", writeRootDirectory},
	} {
		if err := step.write(ctx, device, &sb, params); err != nil {
			return Superblock{}, fmt.Errorf(
				"formatting `%s`: writing %s: %w",
				dev,
				step.name,
				err,
			)
		}
	}
	return sb, nil
}

func writeSuperblock(
	ctx context.Context,
	device Device,
	sb *Superblock,
	_ Params,
) error {
	buf := make([]byte, SectorSize)
	for i := range buf {
		buf[i] = superblockFill
	}
	encode.EncodeSuperblock(sb, buf)
	return device.WriteSector(ctx, sb.Dev, 1, buf)
}

func writeInodeBitmap(
	ctx context.Context,
	device Device,
	sb *Superblock,
	params Params,
) error {
	// bit 0 is reserved, then the root directory and one inode per console
	imap := alloc.New(uint64(bitsPerSector))
	imap.ReserveRange(0, uint64(params.Consoles)+2)
	return device.WriteSector(ctx, sb.Dev, sb.ImapStart(), imap.Bytes())
}

func writeSectorBitmap(
	ctx context.Context,
	device Device,
	sb *Superblock,
	params Params,
) error {
	// bit 0 is reserved, then the root directory's extent
	smap := alloc.New(uint64(sb.NrSmapSectors) * uint64(bitsPerSector))
	smap.ReserveRange(0, uint64(params.DefaultFileSectors)+1)
	bytes := smap.Bytes()
	for i := uint32(0); i < sb.NrSmapSectors; i++ {
		start := Byte(i) * SectorSize
		if err := device.WriteSector(
			ctx,
			sb.Dev,
			sb.SmapStart()+Sector(i),
			bytes[start:start+SectorSize],
		); err != nil {
			return err
		}
	}
	return nil
}

func writeInodeTable(
	ctx context.Context,
	device Device,
	sb *Superblock,
	params Params,
) error {
	buf := make([]byte, SectorSize)
	encode.EncodeInode(
		&InodeRecord{
			Mode:        ModeDirectory,
			Size:        DirEntrySize * Byte(params.Consoles+1),
			StartSector: sb.FirstSector,
			NrSectors:   params.DefaultFileSectors,
		},
		encode.InodeV1.Record(buf, 0),
	)
	for i := 0; i < params.Consoles; i++ {
		encode.EncodeInode(
			&InodeRecord{
				Mode:        ModeCharSpecial,
				StartSector: Sector(MakeDev(MajorTTY, uint32(i))),
			},
			encode.InodeV1.Record(buf, i+1),
		)
	}
	return device.WriteSector(ctx, sb.Dev, sb.InodeTableStart(), buf)
}

func writeRootDirectory(
	ctx context.Context,
	device Device,
	sb *Superblock,
	params Params,
) error {
	buf := make([]byte, SectorSize)
	encode.EncodeDirEntry(
		&DirEntry{Ino: InoRoot, Name: "."},
		encode.DirEntryV1.Record(buf, 0),
	)
	for i := 0; i < params.Consoles; i++ {
		encode.EncodeDirEntry(
			&DirEntry{Ino: ConsoleIno(i), Name: ConsoleName(i)},
			encode.DirEntryV1.Record(buf, i+1),
		)
	}
	return device.WriteSector(ctx, sb.Dev, sb.FirstSector, buf)
}
