package types

// InodeRecordSize is the on-disk size of one inode record.
const InodeRecordSize Byte = 32

// InodeRecord holds the persisted fields of an inode. For char-special files
// `StartSector` carries the device number instead of a sector.
type InodeRecord struct {
	Mode        Mode   `json:"mode"`
	Size        Byte   `json:"size"`
	StartSector Sector `json:"startSector"`
	NrSectors   uint32 `json:"nrSectors"`
}

// Device returns the device a char-special inode refers to.
func (rec *InodeRecord) Device() Dev { return Dev(rec.StartSector) }

// Extent returns the sector range `[start, end)` of a file's data.
func (rec *InodeRecord) Extent() (Sector, Sector) {
	return rec.StartSector, rec.StartSector + Sector(rec.NrSectors)
}
