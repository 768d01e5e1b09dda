package alloc

import (
	"bytes"
	"context"
	"testing"
)

func TestBitmap_ReserveIsLSBFirst(t *testing.T) {
	bm := New(16)
	for bit := uint64(0); bit < 5; bit++ {
		bm.Reserve(bit)
	}
	if wanted, found := []byte{0x1f, 0x00}, bm.Bytes(); !bytes.Equal(
		wanted,
		found,
	) {
		t.Fatalf("wanted `%#x`; found `%#x`", wanted, found)
	}
}

func TestBitmap_Alloc(t *testing.T) {
	bm := FromBytes([]byte{0xff, 0x0b})
	bit, ok := bm.Alloc()
	if !ok {
		t.Fatal("Alloc(): expected a free bit; found none")
	}
	if bit != 10 {
		t.Fatalf("Alloc(): wanted `10`; found `%d`", bit)
	}
	if !bm.Test(10) {
		t.Fatal("Alloc(): bit `10` not reserved")
	}
}

func TestBitmap_AllocFull(t *testing.T) {
	bm := FromBytes([]byte{0xff})
	if bit, ok := bm.Alloc(); ok {
		t.Fatalf("Alloc(): wanted no bit; found `%d`", bit)
	}
}

func TestBitmap_AllocRun(t *testing.T) {
	for _, tc := range []struct {
		name        string
		state       []byte
		from, limit uint64
		count       uint64
		wanted      uint64
		wantedOK    bool
	}{
		{
			name:     "skips short gap",
			state:    []byte{0b1011_0001, 0x00},
			from:     0,
			limit:    16,
			count:    3,
			wanted:   1,
			wantedOK: true,
		},
		{
			name:     "respects from",
			state:    []byte{0x00, 0x00},
			from:     9,
			limit:    16,
			count:    4,
			wanted:   9,
			wantedOK: true,
		},
		{
			name:     "respects limit",
			state:    []byte{0x0f, 0x00},
			from:     0,
			limit:    8,
			count:    5,
			wantedOK: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bm := FromBytes(append([]byte(nil), tc.state...))
			found, ok := bm.AllocRun(tc.from, tc.limit, tc.count)
			if ok != tc.wantedOK {
				t.Fatalf("ok: wanted `%t`; found `%t`", tc.wantedOK, ok)
			}
			if !ok {
				return
			}
			if found != tc.wanted {
				t.Fatalf("wanted `%d`; found `%d`", tc.wanted, found)
			}
			for bit := found; bit < found+tc.count; bit++ {
				if !bm.Test(bit) {
					t.Fatalf("bit `%d` not reserved", bit)
				}
			}
		})
	}
}

type bitmapStoreFake struct {
	puts  int
	dirty []ByteRange
}

func (store *bitmapStoreFake) Put(
	_ context.Context,
	_ Bitmap,
	dirty []ByteRange,
) error {
	store.puts++
	store.dirty = append([]ByteRange(nil), dirty...)
	return nil
}

func TestFlushableBitmap_Flush(t *testing.T) {
	var store bitmapStoreFake
	fb := NewFlushable(New(64), &store)

	if err := fb.Flush(context.Background()); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("clean flush: wanted `0` puts; found `%d`", store.puts)
	}

	if _, ok := fb.AllocRun(12, 64, 10); !ok {
		t.Fatal("AllocRun(): expected a run; found none")
	}
	if err := fb.Flush(context.Background()); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("dirty flush: wanted `1` put; found `%d`", store.puts)
	}
	if wanted := (ByteRange{Start: 1, End: 3}); len(store.dirty) != 1 ||
		store.dirty[0] != wanted {
		t.Fatalf("dirty: wanted `%+v`; found `%+v`", wanted, store.dirty)
	}
	if fb.Dirty() {
		t.Fatal("Dirty(): wanted `false` after flush; found `true`")
	}
}
