// Package hd implements the hard-disk driver task. It serves partitions of a
// single disk image, addressed by minor number.
package hd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

type Disk interface {
	io.ReaderAt
	io.WriterAt
}

// Partitions maps a minor number to its placement on the disk.
type Partitions map[uint32]Geometry

// WholeDisk returns partitions that expose all of a `sectors`-long disk
// under each of `minors`.
func WholeDisk(sectors uint32, minors ...uint32) Partitions {
	partitions := make(Partitions, len(minors))
	for _, minor := range minors {
		partitions[minor] = Geometry{Base: 0, Size: sectors}
	}
	return partitions
}

type Driver struct {
	IPC        ipc.Endpoint
	Self       ProcNr
	Disk       Disk
	Partitions Partitions
	Log        logrus.FieldLogger
}

func (d *Driver) Nr() ProcNr { return d.Self }

func (d *Driver) Name() string { return "hd" }

func (d *Driver) Run(ctx context.Context) error {
	for {
		msg, err := d.IPC.Receive(ctx, d.Self, Any)
		if err != nil {
			return err
		}
		rsp := d.Handle(msg)
		if err := d.IPC.Send(ctx, d.Self, msg.Source, rsp); err != nil {
			return fmt.Errorf("replying to `%d`: %w", msg.Source, err)
		}
	}
}

// Handle serves one request and returns the reply. Failures are reported to
// the requester as a negative `RetVal`.
func (d *Driver) Handle(msg ipc.Message) ipc.Message {
	log := d.Log.WithFields(logrus.Fields{
		"op":    msg.Type.String(),
		"minor": msg.Device,
		"proc":  msg.ProcNr,
	})
	n, err := d.handle(msg)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: Status(err)}
	}
	log.WithField("count", n).Debug("request served")
	return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: n, Count: n}
}

func (d *Driver) handle(msg ipc.Message) (int, error) {
	part, ok := d.Partitions[msg.Device]
	if !ok {
		return 0, fmt.Errorf("minor `%#x`: %w", msg.Device, ENXIO)
	}

	switch msg.Type {
	case ipc.MsgDevOpen:
		return 0, nil
	case ipc.MsgDevClose:
		if syncer, ok := d.Disk.(interface{ Sync() error }); ok {
			if err := syncer.Sync(); err != nil {
				return 0, fmt.Errorf("syncing disk: %v: %w", err, EIO)
			}
		}
		return 0, nil
	case ipc.MsgDevIoctl:
		if msg.Request != ipc.IoctlGetGeometry || msg.Geometry == nil {
			return 0, fmt.Errorf("ioctl `%d`: %w", msg.Request, EINVAL)
		}
		*msg.Geometry = part
		return 0, nil
	case ipc.MsgDevRead, ipc.MsgDevWrite:
		return d.transfer(part, msg)
	default:
		return 0, fmt.Errorf("message type `%s`: %w", msg.Type, EINVAL)
	}
}

func (d *Driver) transfer(part Geometry, msg ipc.Message) (int, error) {
	if msg.Count < 0 || msg.Count > len(msg.Buf) {
		return 0, fmt.Errorf(
			"count `%d` with buffer of `%d` bytes: %w",
			msg.Count,
			len(msg.Buf),
			EINVAL,
		)
	}
	limit := Byte(part.Size) * SectorSize
	if msg.Position < 0 || msg.Position+Byte(msg.Count) > limit {
		return 0, fmt.Errorf(
			"`%d` bytes at `%d` exceed partition of `%d` bytes: %w",
			msg.Count,
			msg.Position,
			limit,
			EIO,
		)
	}

	buf := msg.Buf[:msg.Count]
	offset := int64(part.Base.Offset() + msg.Position)
	if msg.Type == ipc.MsgDevRead {
		n, err := d.Disk.ReadAt(buf, offset)
		if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
			return n, fmt.Errorf("reading disk: %v: %w", err, EIO)
		}
		return n, nil
	}
	n, err := d.Disk.WriteAt(buf, offset)
	if err != nil {
		return n, fmt.Errorf("writing disk: %v: %w", err, EIO)
	}
	return n, nil
}
