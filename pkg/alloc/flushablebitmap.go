package alloc

import "context"

// BitmapStore persists a bitmap. `dirty` lists the byte ranges touched since
// the last successful `Put` so stores can write only what changed.
type BitmapStore interface {
	Put(ctx context.Context, bitmap Bitmap, dirty []ByteRange) error
}

type ByteRange struct {
	Start int
	End   int
}

// FlushableBitmap tracks modifications to a bitmap and writes them through
// its store on `Flush`. It is owned by a single goroutine.
type FlushableBitmap struct {
	bitmap Bitmap
	store  BitmapStore
	dirty  []ByteRange
}

func NewFlushable(bitmap Bitmap, store BitmapStore) *FlushableBitmap {
	return &FlushableBitmap{bitmap: bitmap, store: store}
}

func (fb *FlushableBitmap) Bitmap() Bitmap { return fb.bitmap }

func (fb *FlushableBitmap) Test(bit uint64) bool { return fb.bitmap.Test(bit) }

func (fb *FlushableBitmap) Alloc() (uint64, bool) {
	bit, ok := fb.bitmap.Alloc()
	if ok {
		fb.touch(bit, 1)
	}
	return bit, ok
}

func (fb *FlushableBitmap) AllocRun(from, limit, count uint64) (uint64, bool) {
	start, ok := fb.bitmap.AllocRun(from, limit, count)
	if ok {
		fb.touch(start, count)
	}
	return start, ok
}

func (fb *FlushableBitmap) Reserve(bit uint64) {
	fb.bitmap.Reserve(bit)
	fb.touch(bit, 1)
}

func (fb *FlushableBitmap) FreeRange(start, count uint64) {
	fb.bitmap.FreeRange(start, count)
	fb.touch(start, count)
}

func (fb *FlushableBitmap) Free(bit uint64) {
	fb.bitmap.Free(bit)
	fb.touch(bit, 1)
}

func (fb *FlushableBitmap) touch(start, count uint64) {
	fb.dirty = append(fb.dirty, ByteRange{
		Start: int(start / bitsPerByte),
		End:   int((start+count-1)/bitsPerByte) + 1,
	})
}

func (fb *FlushableBitmap) Dirty() bool { return len(fb.dirty) > 0 }

func (fb *FlushableBitmap) Flush(ctx context.Context) error {
	if len(fb.dirty) == 0 {
		return nil
	}
	if err := fb.store.Put(ctx, fb.bitmap, fb.dirty); err != nil {
		return err
	}
	fb.dirty = fb.dirty[:0]
	return nil
}
