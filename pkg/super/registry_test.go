package super

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/weberc2/konixfs/pkg/encode"
	"github.com/weberc2/konixfs/pkg/testsupport"
	. "github.com/weberc2/konixfs/pkg/types"
)

func formattedDevice(t *testing.T) *testsupport.DeviceFake {
	t.Helper()
	device := testsupport.NewDeviceFake(64)
	sb := encode.NewSuperblockV1()
	sb.NrSectors = 64
	sb.NrImapSectors = 1
	sb.NrSmapSectors = 1
	sb.NrInodeSectors = 2
	sb.FirstSector = 6
	buf := make([]byte, SectorSize)
	encode.EncodeSuperblock(&sb, buf)
	if err := device.WriteSector(context.Background(), RootDev, 1, buf); err != nil {
		t.Fatalf("writing superblock: unexpected err: %v", err)
	}
	return device
}

func newRegistry(device Device, slots int) *Registry {
	log, _ := test.NewNullLogger()
	return NewRegistry(device, slots, log)
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	r := newRegistry(formattedDevice(t), DefaultSlots)
	loaded, err := r.Load(context.Background(), RootDev)
	if err != nil {
		t.Fatalf("Load(): unexpected err: %v", err)
	}
	if loaded.Dev != RootDev || loaded.FirstSector != 6 {
		t.Fatalf("Load(): wanted dev `%s` first sector `6`; found `%+v`", RootDev, loaded)
	}

	found, err := r.Lookup(RootDev)
	if err != nil {
		t.Fatalf("Lookup(): unexpected err: %v", err)
	}
	if found != loaded {
		t.Fatal("Lookup(): wanted the loaded slot")
	}
	if snapshot := r.Snapshot(); len(snapshot) != 1 || snapshot[0] != *loaded {
		t.Fatalf("Snapshot(): wanted `[%+v]`; found `%+v`", *loaded, snapshot)
	}
}

func TestRegistry_FatalConditions(t *testing.T) {
	ctx := context.Background()
	other := MakeDev(MajorHD, 0x22)

	t.Run("lookup-missing", func(t *testing.T) {
		r := newRegistry(formattedDevice(t), DefaultSlots)
		if _, err := r.Lookup(RootDev); !IsFatal(err) {
			t.Fatalf("wanted fatal error; found `%v`", err)
		}
	})

	t.Run("duplicate-load", func(t *testing.T) {
		r := newRegistry(formattedDevice(t), DefaultSlots)
		if _, err := r.Load(ctx, RootDev); err != nil {
			t.Fatalf("first Load(): unexpected err: %v", err)
		}
		if _, err := r.Load(ctx, RootDev); !IsFatal(err) {
			t.Fatalf("second Load(): wanted fatal error; found `%v`", err)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		r := newRegistry(formattedDevice(t), 1)
		if _, err := r.Load(ctx, RootDev); err != nil {
			t.Fatalf("first Load(): unexpected err: %v", err)
		}
		if _, err := r.Load(ctx, other); !IsFatal(err) {
			t.Fatalf("second Load(): wanted fatal error; found `%v`", err)
		}
	})

	t.Run("bad-magic", func(t *testing.T) {
		r := newRegistry(testsupport.NewDeviceFake(64), DefaultSlots)
		if _, err := r.Load(ctx, RootDev); !IsFatal(err) {
			t.Fatalf("wanted fatal error; found `%v`", err)
		}
		if snapshot := r.Snapshot(); len(snapshot) != 0 {
			t.Fatalf("wanted no loaded slots; found `%d`", len(snapshot))
		}
	})
}
