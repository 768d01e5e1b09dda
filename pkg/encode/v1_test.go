package encode

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/weberc2/konixfs/pkg/types"
)

func TestSchemaOffsets(t *testing.T) {
	for _, tc := range []struct {
		name   string
		schema *Schema
		field  string
		wanted Byte
	}{
		{"inode size", InodeV1, InodeFieldSize, 4},
		{"inode start", InodeV1, InodeFieldStartSector, 8},
		{"dir entry ino", DirEntryV1, DirEntryFieldIno, 0},
		{"dir entry name", DirEntryV1, DirEntryFieldName, 4},
		{"superblock last", SuperblockV1, superblockFieldDirEntryNameOff, 52},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if found := tc.schema.Offset(tc.field); found != tc.wanted {
				t.Fatalf("wanted `%d`; found `%d`", tc.wanted, found)
			}
		})
	}
}

func TestNewSchemaPanicsWhenFieldsOverflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic; none occurred")
		}
	}()
	NewSchema("tiny", 1, 4, Uint32("a"), Uint16("b"))
}

func TestSuperblockEncodeDecode(t *testing.T) {
	wanted := NewSuperblockV1()
	wanted.NrInodes = 4096
	wanted.NrInodeSectors = 256
	wanted.NrSectors = 20000
	wanted.NrImapSectors = 1
	wanted.NrSmapSectors = 5
	wanted.FirstSector = 264
	wanted.Dev = MakeDev(3, 0x21)

	buf := make([]byte, SectorSize)
	EncodeSuperblock(&wanted, buf)

	found := Superblock{Dev: wanted.Dev}
	if err := DecodeSuperblock(&found, buf); err != nil {
		t.Fatalf("DecodeSuperblock(): unexpected err: %v", err)
	}
	if wanted != found {
		wantedData, err := json.Marshal(&wanted)
		if err != nil {
			t.Fatalf("marshaling `wanted` superblock: %v", err)
		}
		foundData, err := json.Marshal(&found)
		if err != nil {
			t.Fatalf("marshaling `found` superblock: %v", err)
		}
		t.Fatalf(
			"DecodeSuperblock(): wanted `%s`; found `%s`",
			wantedData,
			foundData,
		)
	}

	// the layout description stored in the superblock must match the
	// schemas used to encode the records it describes
	if found.InodeSizeOff != 4 || found.InodeStartOff != 8 {
		t.Fatalf(
			"inode offsets: wanted `4`, `8`; found `%d`, `%d`",
			found.InodeSizeOff,
			found.InodeStartOff,
		)
	}
	if found.DirEntrySize != 16 || found.DirEntryNameOff != 4 {
		t.Fatalf(
			"dir entry layout: wanted `16`, `4`; found `%d`, `%d`",
			found.DirEntrySize,
			found.DirEntryNameOff,
		)
	}
}

func TestDecodeSuperblockBadMagic(t *testing.T) {
	var sb Superblock
	err := DecodeSuperblock(&sb, make([]byte, SectorSize))
	if !errors.Is(err, BadMagicErr) {
		t.Fatalf("wanted `%v`; found `%v`", BadMagicErr, err)
	}
}

func TestInodeEncodeDecode(t *testing.T) {
	wanted := InodeRecord{
		Mode:        ModeRegular,
		Size:        1234,
		StartSector: 2312,
		NrSectors:   2048,
	}
	buf := make([]byte, InodeRecordSize)
	for i := range buf {
		buf[i] = 0xff
	}
	EncodeInode(&wanted, buf)

	var found InodeRecord
	DecodeInode(&found, buf)
	if wanted != found {
		t.Fatalf("wanted `%+v`; found `%+v`", wanted, found)
	}
	for i := 16; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("padding byte `%d`: wanted `0`; found `%#x`", i, buf[i])
		}
	}
}

func TestDirEntryEncodeDecode(t *testing.T) {
	for _, tc := range []struct {
		name   string
		input  DirEntry
		wanted DirEntry
	}{
		{
			name:   "short",
			input:  DirEntry{Ino: 2, Name: "dev_tty0"},
			wanted: DirEntry{Ino: 2, Name: "dev_tty0"},
		},
		{
			name:   "full width",
			input:  DirEntry{Ino: 7, Name: "abcdefghijkl"},
			wanted: DirEntry{Ino: 7, Name: "abcdefghijkl"},
		},
		{
			name:   "truncated",
			input:  DirEntry{Ino: 9, Name: "abcdefghijklmnop"},
			wanted: DirEntry{Ino: 9, Name: "abcdefghijkl"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, DirEntrySize)
			EncodeDirEntry(&tc.input, buf)
			var found DirEntry
			DecodeDirEntry(&found, buf)
			if found != tc.wanted {
				t.Fatalf("wanted `%+v`; found `%+v`", tc.wanted, found)
			}
		})
	}
}
