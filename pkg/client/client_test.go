package client

import (
	"context"
	"errors"
	"testing"

	"github.com/weberc2/konixfs/pkg/fsserver"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

type rendezvousFake func(msg ipc.Message) ipc.Message

func (rf rendezvousFake) SendRecv(
	ctx context.Context,
	self ProcNr,
	to ProcNr,
	msg ipc.Message,
) (ipc.Message, error) {
	msg.Source = self
	rsp := rf(msg)
	rsp.Source = to
	return rsp, nil
}

func TestClient_Statuses(t *testing.T) {
	var seen []ipc.Message
	c := Client{
		IPC: rendezvousFake(func(msg ipc.Message) ipc.Message {
			seen = append(seen, msg)
			switch msg.Type {
			case ipc.MsgOpen:
				if msg.Path == "/missing" {
					return ipc.Message{
						Type:   ipc.MsgSyscallRet,
						FD:     -1,
						RetVal: -int(ENOENT),
					}
				}
				return ipc.Message{Type: ipc.MsgSyscallRet, FD: 2}
			case ipc.MsgRead:
				n := copy(msg.Buf, "abc")
				return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: n, Count: n}
			case ipc.MsgFSStat:
				return ipc.Message{
					Type:    ipc.MsgSyscallRet,
					Payload: fsserver.Stat{Pending: []fsserver.Pending{{Proc: 9}}},
				}
			case ipc.MsgUnlink:
				return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(EBUSY)}
			default:
				return ipc.Message{Type: ipc.MsgSuspendProc}
			}
		}),
		Self: 7,
		FS:   3,
	}
	ctx := context.Background()

	fd, err := c.Open(ctx, "/notes", ipc.OpenRDWR)
	if err != nil || fd != 2 {
		t.Fatalf("Open(): wanted fd `2`; found `%d` (err: %v)", fd, err)
	}
	if _, err := c.Open(ctx, "/missing", ipc.OpenRead); !errors.Is(err, ENOENT) {
		t.Fatalf("Open(): wanted `ENOENT`; found `%v`", err)
	}

	buf := make([]byte, 8)
	n, err := c.Read(ctx, fd, buf)
	if err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("Read(): wanted `abc`; found `%s` (err: %v)", buf[:n], err)
	}
	if seen[len(seen)-1].Count != len(buf) {
		t.Fatalf(
			"Read(): wanted request count `%d`; found `%d`",
			len(buf),
			seen[len(seen)-1].Count,
		)
	}

	if err := c.Unlink(ctx, "/notes"); !errors.Is(err, EBUSY) {
		t.Fatalf("Unlink(): wanted `EBUSY`; found `%v`", err)
	}

	stat, err := c.Stat(ctx)
	if err != nil || len(stat.Pending) != 1 {
		t.Fatalf("Stat(): wanted one pending entry; found `%v` (err: %v)", stat, err)
	}

	// anything but SYSCALL_RET is a protocol violation
	if err := c.Close(ctx, fd); !IsFatal(err) {
		t.Fatalf("Close(): wanted fatal error; found `%v`", err)
	}
}
