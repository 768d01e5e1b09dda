package hd

import (
	"fmt"
	"io"

	. "github.com/weberc2/konixfs/pkg/types"
)

// MemDisk is a disk image held in memory.
type MemDisk struct {
	data []byte
}

func NewMemDisk(sectors uint32) *MemDisk {
	return &MemDisk{data: make([]byte, Byte(sectors)*SectorSize)}
}

func (d *MemDisk) Bytes() []byte { return d.data }

func (d *MemDisk) ReadAt(p []byte, offset int64) (int, error) {
	if offset < 0 || offset >= int64(len(d.data)) {
		return 0, fmt.Errorf(
			"reading `%d` bytes from memory disk at offset `%d`: %w",
			len(p),
			offset,
			io.EOF,
		)
	}
	n := copy(p, d.data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *MemDisk) WriteAt(p []byte, offset int64) (int, error) {
	if offset < 0 || offset+int64(len(p)) > int64(len(d.data)) {
		return 0, fmt.Errorf(
			"writing `%d` bytes to memory disk at offset `%d`: %w",
			len(p),
			offset,
			io.ErrShortWrite,
		)
	}
	return copy(d.data[offset:], p), nil
}
