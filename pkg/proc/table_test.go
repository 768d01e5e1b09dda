package proc

import (
	"testing"

	"github.com/weberc2/konixfs/pkg/filedesc"
	. "github.com/weberc2/konixfs/pkg/types"
)

func TestTable_Fork(t *testing.T) {
	table := NewTable(4)
	parent, err := table.Proc(1)
	if err != nil {
		t.Fatalf("Proc(1): unexpected err: %v", err)
	}
	parent.Name = "init"
	parent.Files[0] = 7

	if err := table.Fork(1, 2); err != nil {
		t.Fatalf("Fork(): unexpected err: %v", err)
	}
	child, _ := table.Proc(2)
	if child.Nr != 2 || child.Name != "init" || child.Files[0] != 7 {
		t.Fatalf("wanted copy of parent as `2`; found `%+v`", child)
	}

	// the tables are copies, not aliases
	child.Files[0] = filedesc.NilHandle
	if parent.Files[0] != 7 {
		t.Fatalf("wanted parent fd `0` to keep `7`; found `%d`", parent.Files[0])
	}
}

func TestTable_OutOfRange(t *testing.T) {
	table := NewTable(2)
	for _, nr := range []ProcNr{-1, 2} {
		if _, err := table.Files(nr); !IsFatal(err) {
			t.Fatalf("Files(%d): wanted fatal error; found `%v`", nr, err)
		}
	}
}
