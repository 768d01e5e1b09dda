// Package client wraps FS task requests for user processes: each call is one
// rendezvous with the FS task, and negative statuses come back as `Errno`.
package client

import (
	"context"
	"fmt"

	"github.com/weberc2/konixfs/pkg/fsserver"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

type Rendezvous interface {
	SendRecv(
		ctx context.Context,
		self ProcNr,
		to ProcNr,
		msg ipc.Message,
	) (ipc.Message, error)
}

type Client struct {
	IPC  Rendezvous
	Self ProcNr
	FS   ProcNr
}

func (c *Client) call(ctx context.Context, msg ipc.Message) (ipc.Message, error) {
	rsp, err := c.IPC.SendRecv(ctx, c.Self, c.FS, msg)
	if err != nil {
		return rsp, fmt.Errorf("%s: %w", msg.Type, err)
	}
	if rsp.Type != ipc.MsgSyscallRet {
		return rsp, Fatalf("%s: unexpected reply `%s`", msg.Type, rsp.Type)
	}
	if rsp.RetVal < 0 {
		return rsp, fmt.Errorf("%s: %w", msg.Type, Errno(-rsp.RetVal))
	}
	return rsp, nil
}

// Open returns a file descriptor for `path`. `flags` combines an access mode
// with `ipc.OpenCreate`.
func (c *Client) Open(ctx context.Context, path string, flags int) (int, error) {
	rsp, err := c.call(ctx, ipc.Message{
		Type:  ipc.MsgOpen,
		Path:  path,
		Flags: flags,
	})
	if err != nil {
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}
	return rsp.FD, nil
}

func (c *Client) Close(ctx context.Context, fd int) error {
	if _, err := c.call(ctx, ipc.Message{Type: ipc.MsgClose, FD: fd}); err != nil {
		return fmt.Errorf("closing fd `%d`: %w", fd, err)
	}
	return nil
}

// Read fills `buf` from `fd` and returns the byte count. Reading a console
// with no input blocks until a line is typed.
func (c *Client) Read(ctx context.Context, fd int, buf []byte) (int, error) {
	rsp, err := c.call(ctx, ipc.Message{
		Type:  ipc.MsgRead,
		FD:    fd,
		Buf:   buf,
		Count: len(buf),
	})
	if err != nil {
		return 0, fmt.Errorf("reading fd `%d`: %w", fd, err)
	}
	return rsp.Count, nil
}

func (c *Client) Write(ctx context.Context, fd int, data []byte) (int, error) {
	rsp, err := c.call(ctx, ipc.Message{
		Type:  ipc.MsgWrite,
		FD:    fd,
		Buf:   data,
		Count: len(data),
	})
	if err != nil {
		return 0, fmt.Errorf("writing fd `%d`: %w", fd, err)
	}
	return rsp.Count, nil
}

func (c *Client) Unlink(ctx context.Context, path string) error {
	if _, err := c.call(ctx, ipc.Message{
		Type: ipc.MsgUnlink,
		Path: path,
	}); err != nil {
		return fmt.Errorf("unlinking `%s`: %w", path, err)
	}
	return nil
}

// Forked tells the FS task that `child` now shares this process's files.
// The process table must already hold the child's copy.
func (c *Client) Forked(ctx context.Context, child ProcNr) error {
	if _, err := c.call(ctx, ipc.Message{
		Type: ipc.MsgFork,
		PID:  child,
	}); err != nil {
		return fmt.Errorf("forking `%d`: %w", child, err)
	}
	return nil
}

// Exited releases every file `pid` still holds.
func (c *Client) Exited(ctx context.Context, pid ProcNr) error {
	if _, err := c.call(ctx, ipc.Message{
		Type: ipc.MsgExit,
		PID:  pid,
	}); err != nil {
		return fmt.Errorf("exiting `%d`: %w", pid, err)
	}
	return nil
}

func (c *Client) Stat(ctx context.Context) (fsserver.Stat, error) {
	rsp, err := c.call(ctx, ipc.Message{Type: ipc.MsgFSStat})
	if err != nil {
		return fsserver.Stat{}, err
	}
	stat, ok := rsp.Payload.(fsserver.Stat)
	if !ok {
		return fsserver.Stat{}, Fatalf(
			"FS_STAT: unexpected payload `%T`",
			rsp.Payload,
		)
	}
	return stat, nil
}
