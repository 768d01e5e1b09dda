package alloc

import (
	"github.com/weberc2/konixfs/pkg/math"
)

const bitsPerByte = 8

// Bitmap is an allocation map with one bit per object. Bit `i` lives in byte
// `i/8` at position `i%8`, least significant bit first.
type Bitmap struct {
	bytes []byte
}

func New(bits uint64) Bitmap {
	return Bitmap{make([]byte, math.DivRoundUp(bits, bitsPerByte))}
}

// FromBytes wraps `bytes` without copying.
func FromBytes(bytes []byte) Bitmap { return Bitmap{bytes} }

func (bm Bitmap) Len() uint64 { return uint64(len(bm.bytes)) * bitsPerByte }

func (bm Bitmap) Test(bit uint64) bool {
	return bm.bytes[bit/bitsPerByte]&(1<<(bit%bitsPerByte)) != 0
}

func (bm Bitmap) Reserve(bit uint64) {
	bm.bytes[bit/bitsPerByte] |= 1 << (bit % bitsPerByte)
}

func (bm Bitmap) Free(bit uint64) {
	bm.bytes[bit/bitsPerByte] &^= 1 << (bit % bitsPerByte)
}

// ReserveRange marks bits `[start, start+count)` as allocated.
func (bm Bitmap) ReserveRange(start, count uint64) {
	for bit := start; bit < start+count; bit++ {
		bm.Reserve(bit)
	}
}

func (bm Bitmap) FreeRange(start, count uint64) {
	for bit := start; bit < start+count; bit++ {
		bm.Free(bit)
	}
}

// Alloc reserves and returns the first clear bit.
func (bm Bitmap) Alloc() (uint64, bool) {
	for i, byt := range bm.bytes {
		if byt == 0xff {
			continue
		}
		for bit := uint64(0); bit < bitsPerByte; bit++ {
			if byt&(1<<bit) == 0 {
				found := uint64(i)*bitsPerByte + bit
				bm.Reserve(found)
				return found, true
			}
		}
	}
	return 0, false
}

// AllocRun reserves the first run of `count` consecutive clear bits within
// `[from, limit)` and returns its first bit.
func (bm Bitmap) AllocRun(from, limit, count uint64) (uint64, bool) {
	limit = math.Min(limit, bm.Len())
	var run uint64
	for bit := from; bit < limit; bit++ {
		if bm.Test(bit) {
			run = 0
			continue
		}
		run++
		if run == count {
			start := bit + 1 - count
			bm.ReserveRange(start, count)
			return start, true
		}
	}
	return 0, false
}

func (bm Bitmap) Bytes() []byte { return bm.bytes }
