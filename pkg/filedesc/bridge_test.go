package filedesc

import (
	"errors"
	"testing"

	"github.com/weberc2/konixfs/pkg/inode"
	. "github.com/weberc2/konixfs/pkg/types"
)

type fileTablesFake map[ProcNr]*Files

func (ftf fileTablesFake) Files(pid ProcNr) (*Files, error) {
	if files, found := ftf[pid]; found {
		return files, nil
	}
	return nil, Fatalf("no process `%d`", pid)
}

type inodesFake map[inode.Handle]int

func (inf inodesFake) Retain(h inode.Handle) error {
	if inf[h] < 1 {
		return Fatalf("retaining free inode `%d`", h)
	}
	inf[h]++
	return nil
}

func (inf inodesFake) Release(h inode.Handle) error {
	if inf[h] < 1 {
		return Fatalf("releasing free inode `%d`", h)
	}
	inf[h]--
	return nil
}

func TestBridge_ForkExitSymmetry(t *testing.T) {
	descs := NewTable(DefaultSlots)
	inodes := inodesFake{10: 1, 11: 1}
	a, err := descs.Alloc(10, 0)
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	b, err := descs.Alloc(11, 0)
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}

	parent := &Files{0: a, 3: b}
	child := new(Files)
	bridge := Bridge{
		Procs:  fileTablesFake{1: parent, 2: child},
		Descs:  descs,
		Inodes: inodes,
	}

	// the process manager copies the table before telling the FS
	*child = *parent
	if err := bridge.OnFork(2); err != nil {
		t.Fatalf("OnFork(): unexpected err: %v", err)
	}
	for _, h := range []Handle{a, b} {
		if count := descs.Get(h).Count; count != 2 {
			t.Fatalf("descriptor `%d`: wanted count `2`; found `%d`", h, count)
		}
	}
	if inodes[10] != 2 || inodes[11] != 2 {
		t.Fatalf("wanted inode counts `2`; found `%v`", inodes)
	}

	if err := bridge.OnExit(2); err != nil {
		t.Fatalf("OnExit(2): unexpected err: %v", err)
	}
	if *child != (Files{}) {
		t.Fatal("wanted the child's file table cleared")
	}
	for _, h := range []Handle{a, b} {
		if count := descs.Get(h).Count; count != 1 {
			t.Fatalf("descriptor `%d`: wanted count `1`; found `%d`", h, count)
		}
	}
	if inodes[10] != 1 || inodes[11] != 1 {
		t.Fatalf("wanted inode counts `1`; found `%v`", inodes)
	}

	if err := bridge.OnExit(1); err != nil {
		t.Fatalf("OnExit(1): unexpected err: %v", err)
	}
	if descs.Get(a) != nil || descs.Get(b) != nil {
		t.Fatal("wanted both descriptors freed")
	}
	if inodes[10] != 0 || inodes[11] != 0 {
		t.Fatalf("wanted inode counts `0`; found `%v`", inodes)
	}
	if snapshot := descs.Snapshot(); len(snapshot) != 0 {
		t.Fatalf("wanted empty descriptor table; found `%d` entries", len(snapshot))
	}
}

func TestBridge_UnknownProcessIsFatal(t *testing.T) {
	bridge := Bridge{
		Procs:  fileTablesFake{},
		Descs:  NewTable(1),
		Inodes: inodesFake{},
	}
	if err := bridge.OnFork(9); !IsFatal(err) {
		t.Fatalf("OnFork(): wanted fatal error; found `%v`", err)
	}
	if err := bridge.OnExit(9); !IsFatal(err) {
		t.Fatalf("OnExit(): wanted fatal error; found `%v`", err)
	}
}

func TestTable_Alloc(t *testing.T) {
	descs := NewTable(1)
	h, err := descs.Alloc(1, 2)
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	if _, err := descs.Alloc(1, 2); !errors.Is(err, ENFILE) {
		t.Fatalf("wanted `%v`; found `%v`", ENFILE, err)
	}
	last, err := descs.Put(h)
	if err != nil || !last {
		t.Fatalf("Put(): wanted last reference; found `%v` (err `%v`)", last, err)
	}
	if _, err := descs.Put(h); !IsFatal(err) {
		t.Fatalf("second Put(): wanted fatal error; found `%v`", err)
	}
	if _, err := descs.Alloc(1, 2); err != nil {
		t.Fatalf("Alloc() after Put(): unexpected err: %v", err)
	}
}
