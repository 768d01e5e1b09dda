package encode

import (
	"fmt"

	. "github.com/weberc2/konixfs/pkg/types"
)

const BadMagicErr ConstError = "bad magic"

const (
	superblockFieldMagic           = "magic"
	superblockFieldNrInodes        = "nr_inodes"
	superblockFieldNrInodeSectors  = "nr_inode_sects"
	superblockFieldNrSectors       = "nr_sects"
	superblockFieldNrImapSectors   = "nr_imap_sects"
	superblockFieldNrSmapSectors   = "nr_smap_sects"
	superblockFieldFirstSector     = "n_1st_sect"
	superblockFieldRootInode       = "root_inode"
	superblockFieldInodeSize       = "inode_size"
	superblockFieldInodeSizeOff    = "inode_isize_off"
	superblockFieldInodeStartOff   = "inode_start_off"
	superblockFieldDirEntrySize    = "dir_ent_size"
	superblockFieldDirEntryInoOff  = "dir_ent_inode_off"
	superblockFieldDirEntryNameOff = "dir_ent_fname_off"

	InodeFieldMode        = "i_mode"
	InodeFieldSize        = "i_size"
	InodeFieldStartSector = "i_start_sect"
	InodeFieldNrSectors   = "i_nr_sects"

	DirEntryFieldIno  = "inode_nr"
	DirEntryFieldName = "name"
)

var (
	SuperblockV1 = NewSchema(
		"superblock",
		MagicV1,
		56,
		Uint32(superblockFieldMagic),
		Uint32(superblockFieldNrInodes),
		Uint32(superblockFieldNrInodeSectors),
		Uint32(superblockFieldNrSectors),
		Uint32(superblockFieldNrImapSectors),
		Uint32(superblockFieldNrSmapSectors),
		Uint32(superblockFieldFirstSector),
		Uint32(superblockFieldRootInode),
		Uint32(superblockFieldInodeSize),
		Uint32(superblockFieldInodeSizeOff),
		Uint32(superblockFieldInodeStartOff),
		Uint32(superblockFieldDirEntrySize),
		Uint32(superblockFieldDirEntryInoOff),
		Uint32(superblockFieldDirEntryNameOff),
	)

	InodeV1 = NewSchema(
		"inode",
		MagicV1,
		InodeRecordSize,
		Uint32(InodeFieldMode),
		Uint32(InodeFieldSize),
		Uint32(InodeFieldStartSector),
		Uint32(InodeFieldNrSectors),
	)

	DirEntryV1 = NewSchema(
		"dir_entry",
		MagicV1,
		DirEntrySize,
		Uint32(DirEntryFieldIno),
		Bytes(DirEntryFieldName, Byte(MaxFilename)),
	)
)

// NewSuperblockV1 fills in the magic and the record-layout description
// fields of a superblock from the v1 schemas.
func NewSuperblockV1() Superblock {
	return Superblock{
		Magic:           MagicV1,
		RootInode:       InoRoot,
		InodeSize:       uint32(InodeV1.Size),
		InodeSizeOff:    uint32(InodeV1.Offset(InodeFieldSize)),
		InodeStartOff:   uint32(InodeV1.Offset(InodeFieldStartSector)),
		DirEntrySize:    uint32(DirEntryV1.Size),
		DirEntryInoOff:  uint32(DirEntryV1.Offset(DirEntryFieldIno)),
		DirEntryNameOff: uint32(DirEntryV1.Offset(DirEntryFieldName)),
	}
}

func EncodeSuperblock(sb *Superblock, p []byte) {
	s := SuperblockV1
	s.PutUint(p, superblockFieldMagic, sb.Magic)
	s.PutUint(p, superblockFieldNrInodes, sb.NrInodes)
	s.PutUint(p, superblockFieldNrInodeSectors, sb.NrInodeSectors)
	s.PutUint(p, superblockFieldNrSectors, sb.NrSectors)
	s.PutUint(p, superblockFieldNrImapSectors, sb.NrImapSectors)
	s.PutUint(p, superblockFieldNrSmapSectors, sb.NrSmapSectors)
	s.PutUint(p, superblockFieldFirstSector, uint32(sb.FirstSector))
	s.PutUint(p, superblockFieldRootInode, uint32(sb.RootInode))
	s.PutUint(p, superblockFieldInodeSize, sb.InodeSize)
	s.PutUint(p, superblockFieldInodeSizeOff, sb.InodeSizeOff)
	s.PutUint(p, superblockFieldInodeStartOff, sb.InodeStartOff)
	s.PutUint(p, superblockFieldDirEntrySize, sb.DirEntrySize)
	s.PutUint(p, superblockFieldDirEntryInoOff, sb.DirEntryInoOff)
	s.PutUint(p, superblockFieldDirEntryNameOff, sb.DirEntryNameOff)
}

// DecodeSuperblock populates `sb` from `p`. `sb.Dev` is left untouched since
// the device isn't part of the on-disk record.
func DecodeSuperblock(sb *Superblock, p []byte) error {
	s := SuperblockV1
	if magic := s.GetUint(p, superblockFieldMagic); magic != MagicV1 {
		return fmt.Errorf(
			"decoding superblock: decoded magic `%#x`: %w",
			magic,
			BadMagicErr,
		)
	}
	dev := sb.Dev
	*sb = Superblock{
		Magic:           MagicV1,
		NrInodes:        s.GetUint(p, superblockFieldNrInodes),
		NrInodeSectors:  s.GetUint(p, superblockFieldNrInodeSectors),
		NrSectors:       s.GetUint(p, superblockFieldNrSectors),
		NrImapSectors:   s.GetUint(p, superblockFieldNrImapSectors),
		NrSmapSectors:   s.GetUint(p, superblockFieldNrSmapSectors),
		FirstSector:     Sector(s.GetUint(p, superblockFieldFirstSector)),
		RootInode:       Ino(s.GetUint(p, superblockFieldRootInode)),
		InodeSize:       s.GetUint(p, superblockFieldInodeSize),
		InodeSizeOff:    s.GetUint(p, superblockFieldInodeSizeOff),
		InodeStartOff:   s.GetUint(p, superblockFieldInodeStartOff),
		DirEntrySize:    s.GetUint(p, superblockFieldDirEntrySize),
		DirEntryInoOff:  s.GetUint(p, superblockFieldDirEntryInoOff),
		DirEntryNameOff: s.GetUint(p, superblockFieldDirEntryNameOff),
		Dev:             dev,
	}
	return nil
}

// EncodeInode writes `rec` into the inode record at `p`, which must be at
// least `InodeRecordSize` bytes. Bytes past the schema's fields are zeroed.
func EncodeInode(rec *InodeRecord, p []byte) {
	s := InodeV1
	for i := range p[:s.Size] {
		p[i] = 0
	}
	s.PutUint(p, InodeFieldMode, uint32(rec.Mode))
	s.PutUint(p, InodeFieldSize, uint32(rec.Size))
	s.PutUint(p, InodeFieldStartSector, uint32(rec.StartSector))
	s.PutUint(p, InodeFieldNrSectors, rec.NrSectors)
}

func DecodeInode(rec *InodeRecord, p []byte) {
	s := InodeV1
	*rec = InodeRecord{
		Mode:        Mode(s.GetUint(p, InodeFieldMode)),
		Size:        Byte(s.GetUint(p, InodeFieldSize)),
		StartSector: Sector(s.GetUint(p, InodeFieldStartSector)),
		NrSectors:   s.GetUint(p, InodeFieldNrSectors),
	}
}

func EncodeDirEntry(entry *DirEntry, p []byte) {
	DirEntryV1.PutUint(p, DirEntryFieldIno, uint32(entry.Ino))
	DirEntryV1.PutBytes(p, DirEntryFieldName, entry.Name)
}

func DecodeDirEntry(entry *DirEntry, p []byte) {
	*entry = DirEntry{
		Ino:  Ino(DirEntryV1.GetUint(p, DirEntryFieldIno)),
		Name: DirEntryV1.GetBytes(p, DirEntryFieldName),
	}
}
