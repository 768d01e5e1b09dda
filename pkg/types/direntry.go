package types

const (
	DirEntrySize Byte = 16
	MaxFilename  int  = 12
)

// DirEntry is one fixed-size record in a directory's data. A zero `Ino`
// marks a free record.
type DirEntry struct {
	Ino  Ino
	Name string
}
