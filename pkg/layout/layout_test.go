package layout

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/weberc2/konixfs/pkg/encode"
	"github.com/weberc2/konixfs/pkg/testsupport"
	. "github.com/weberc2/konixfs/pkg/types"
)

func TestCompute(t *testing.T) {
	sb, err := Compute(20000, DefaultParams())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, tc := range []struct {
		name   string
		wanted uint32
		found  uint32
	}{
		{"NrInodes", 4096, sb.NrInodes},
		{"NrInodeSectors", 256, sb.NrInodeSectors},
		{"NrImapSectors", 1, sb.NrImapSectors},
		{"NrSmapSectors", 5, sb.NrSmapSectors},
		{"FirstSector", 264, uint32(sb.FirstSector)},
		{"InodeTableStart", 8, uint32(sb.InodeTableStart())},
		{"RootInode", 1, uint32(sb.RootInode)},
	} {
		if tc.wanted != tc.found {
			t.Errorf("%s: wanted `%d`; found `%d`", tc.name, tc.wanted, tc.found)
		}
	}
}

func TestCompute_TooSmall(t *testing.T) {
	// a one-sector sector bitmap puts the first data sector at 260
	if _, err := Compute(260+2048, DefaultParams()); err != nil {
		t.Fatalf("exact fit: unexpected err: %v", err)
	}
	if _, err := Compute(260+2047, DefaultParams()); !IsFatal(err) {
		t.Fatalf("one short: wanted fatal error; found `%v`", err)
	}
	if _, err := Compute(0, DefaultParams()); !IsFatal(err) {
		t.Fatalf("empty: wanted fatal error; found `%v`", err)
	}
}

func TestFormat(t *testing.T) {
	device := testsupport.NewDeviceFake(20000)
	log, _ := test.NewNullLogger()
	sb, err := Format(context.Background(), device, RootDev, DefaultParams(), log)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	t.Run("superblock", func(t *testing.T) {
		var decoded Superblock
		buf := device.Sector(1)
		if err := encode.DecodeSuperblock(&decoded, buf); err != nil {
			t.Fatalf("decoding: unexpected err: %v", err)
		}
		decoded.Dev = sb.Dev
		if decoded != sb {
			t.Fatalf("wanted `%+v`; found `%+v`", sb, decoded)
		}
		for i := encode.SuperblockV1.Size; i < SectorSize; i++ {
			if buf[i] != 0x90 {
				t.Fatalf("byte `%d`: wanted `0x90`; found `%#x`", i, buf[i])
			}
		}
	})

	t.Run("inode-bitmap", func(t *testing.T) {
		imap := device.Sector(2)
		if imap[0] != 0x1F {
			t.Fatalf("wanted `0x1f`; found `%#x`", imap[0])
		}
		for i, b := range imap[1:] {
			if b != 0 {
				t.Fatalf("byte `%d`: wanted `0`; found `%#x`", i+1, b)
			}
		}
	})

	t.Run("sector-bitmap", func(t *testing.T) {
		smap := device.Sector(sb.SmapStart())
		for i := 0; i < 256; i++ {
			if smap[i] != 0xFF {
				t.Fatalf("byte `%d`: wanted `0xff`; found `%#x`", i, smap[i])
			}
		}
		if smap[256] != 0x01 {
			t.Fatalf("byte `256`: wanted `0x01`; found `%#x`", smap[256])
		}
		for s := sb.SmapStart() + 1; s < sb.InodeTableStart(); s++ {
			if _, written := device.Sectors[s]; !written {
				t.Fatalf("sector-bitmap sector `%d` never written", s)
			}
		}
	})

	t.Run("inode-table", func(t *testing.T) {
		buf := device.Sector(sb.InodeTableStart())
		var root InodeRecord
		encode.DecodeInode(&root, encode.InodeV1.Record(buf, 0))
		wanted := InodeRecord{
			Mode:        ModeDirectory,
			Size:        4 * DirEntrySize,
			StartSector: 264,
			NrSectors:   2048,
		}
		if root != wanted {
			t.Fatalf("root: wanted `%+v`; found `%+v`", wanted, root)
		}
		for i := 0; i < DefaultConsoles; i++ {
			var tty InodeRecord
			encode.DecodeInode(&tty, encode.InodeV1.Record(buf, i+1))
			if !tty.Mode.IsCharSpecial() ||
				tty.Device() != MakeDev(MajorTTY, uint32(i)) {
				t.Fatalf("tty%d: wanted char device `4,%d`; found `%+v`", i, i, tty)
			}
		}
	})

	t.Run("root-directory", func(t *testing.T) {
		buf := device.Sector(sb.FirstSector)
		for i, wanted := range []DirEntry{
			{Ino: 1, Name: "."},
			{Ino: 2, Name: "dev_tty0"},
			{Ino: 3, Name: "dev_tty1"},
			{Ino: 4, Name: "dev_tty2"},
			{Ino: 0, Name: ""},
		} {
			var entry DirEntry
			encode.DecodeDirEntry(&entry, encode.DirEntryV1.Record(buf, i))
			if entry != wanted {
				t.Fatalf("entry `%d`: wanted `%+v`; found `%+v`", i, wanted, entry)
			}
		}
	})
}

func TestSectorBit(t *testing.T) {
	sb := Superblock{FirstSector: 264}
	if bit := SectorBit(&sb, 264); bit != 1 {
		t.Fatalf("wanted `1`; found `%d`", bit)
	}
	if sector := BitSector(&sb, 2049); sector != 264+2048 {
		t.Fatalf("wanted `%d`; found `%d`", 264+2048, sector)
	}
}
