package types

const MagicV1 uint32 = 0x111

// Superblock describes the layout of one volume. Every field except `Dev` is
// persisted; `Dev` records which device the registry slot belongs to.
type Superblock struct {
	Magic           uint32 `json:"magic"`
	NrInodes        uint32 `json:"nrInodes"`
	NrInodeSectors  uint32 `json:"nrInodeSectors"`
	NrSectors       uint32 `json:"nrSectors"`
	NrImapSectors   uint32 `json:"nrImapSectors"`
	NrSmapSectors   uint32 `json:"nrSmapSectors"`
	FirstSector     Sector `json:"firstSector"`
	RootInode       Ino    `json:"rootInode"`
	InodeSize       uint32 `json:"inodeSize"`
	InodeSizeOff    uint32 `json:"inodeSizeOff"`
	InodeStartOff   uint32 `json:"inodeStartOff"`
	DirEntrySize    uint32 `json:"dirEntrySize"`
	DirEntryInoOff  uint32 `json:"dirEntryInoOff"`
	DirEntryNameOff uint32 `json:"dirEntryNameOff"`

	Dev Dev `json:"dev"`
}

// InodeTableStart is the first sector of the inode table: boot sector,
// superblock, inode bitmap, then sector bitmap.
func (sb *Superblock) InodeTableStart() Sector {
	return Sector(2 + sb.NrImapSectors + sb.NrSmapSectors)
}

func (sb *Superblock) ImapStart() Sector { return 2 }

func (sb *Superblock) SmapStart() Sector { return Sector(2 + sb.NrImapSectors) }

func (sb *Superblock) InodesPerSector() uint32 {
	return uint32(SectorSize) / sb.InodeSize
}

// InodeLocation returns the inode-table sector holding `ino` and the byte
// offset of its record within that sector.
func (sb *Superblock) InodeLocation(ino Ino) (Sector, Byte) {
	perSector := sb.InodesPerSector()
	index := uint32(ino - 1)
	return sb.InodeTableStart() + Sector(index/perSector),
		Byte(index%perSector) * Byte(sb.InodeSize)
}
