// Package proc holds the process table as far as the file system sees it:
// each process's name and file table.
package proc

import (
	"github.com/weberc2/konixfs/pkg/filedesc"
	. "github.com/weberc2/konixfs/pkg/types"
)

const DefaultProcs = 32

type Proc struct {
	Nr    ProcNr
	Name  string
	Files filedesc.Files
}

// Table is a fixed array of process slots. A process's file table is written
// by the FS task while it serves that process, and by `Fork` while neither
// process has a request in flight, so the slots need no locking.
type Table struct {
	procs []Proc
}

func NewTable(procs int) *Table {
	t := Table{procs: make([]Proc, procs)}
	for i := range t.procs {
		t.procs[i].Nr = ProcNr(i)
	}
	return &t
}

func (t *Table) Proc(nr ProcNr) (*Proc, error) {
	if nr < 0 || int(nr) >= len(t.procs) {
		return nil, Fatalf("process `%d` outside table of `%d`", nr, len(t.procs))
	}
	return &t.procs[nr], nil
}

func (t *Table) Files(nr ProcNr) (*filedesc.Files, error) {
	p, err := t.Proc(nr)
	if err != nil {
		return nil, err
	}
	return &p.Files, nil
}

// Fork copies `parent`'s name and file table into `child`. The copy is
// shallow: both tables name the same descriptors, whose counts the FS task
// raises when it handles the corresponding FORK message.
func (t *Table) Fork(parent, child ProcNr) error {
	p, err := t.Proc(parent)
	if err != nil {
		return err
	}
	c, err := t.Proc(child)
	if err != nil {
		return err
	}
	c.Name = p.Name
	c.Files = p.Files
	return nil
}
