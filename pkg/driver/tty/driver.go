// Package tty implements the terminal driver task: one console per minor
// number, each with an output writer and a ring buffer of keyboard input.
//
// A read that finds no input is not answered with data. The driver replies
// `SUSPEND_PROC` to the FS task instead, remembers the reader, and once input
// arrives copies it straight into the reader's buffer and sends
// `RESUME_PROC` to the FS task, which then answers the reader.
package tty

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/ipc"
	"github.com/weberc2/konixfs/pkg/ring"
	. "github.com/weberc2/konixfs/pkg/types"
)

const DefaultInputCap = 256

type reader struct {
	proc ProcNr
	buf  []byte
}

type console struct {
	out     io.Writer
	in      *ring.Buffer[byte]
	waiting *reader
}

type Driver struct {
	ipc      ipc.Endpoint
	self     ProcNr
	fs       ProcNr
	consoles []console
	log      logrus.FieldLogger
}

// New creates a driver with one console per writer in `outs`. Readers are
// resumed by notifying the task `fs`.
func New(
	endpoint ipc.Endpoint,
	self ProcNr,
	fs ProcNr,
	outs []io.Writer,
	inputCap int,
	log logrus.FieldLogger,
) (*Driver, error) {
	d := Driver{
		ipc:      endpoint,
		self:     self,
		fs:       fs,
		consoles: make([]console, len(outs)),
		log:      log,
	}
	for i, out := range outs {
		in, err := ring.New[byte](inputCap)
		if err != nil {
			return nil, fmt.Errorf("creating console `%d`: %w", i, err)
		}
		d.consoles[i] = console{out: out, in: in}
	}
	return &d, nil
}

func (d *Driver) Nr() ProcNr { return d.self }

func (d *Driver) Name() string { return "tty" }

func (d *Driver) Run(ctx context.Context) error {
	for {
		msg, err := d.ipc.Receive(ctx, d.self, Any)
		if err != nil {
			return err
		}
		if msg.Type == ipc.MsgKeyboard {
			if err := d.keyboard(ctx, msg); err != nil {
				return err
			}
			continue
		}
		if err := d.ipc.Send(
			ctx,
			d.self,
			msg.Source,
			d.Handle(msg),
		); err != nil {
			return fmt.Errorf("replying to `%d`: %w", msg.Source, err)
		}
	}
}

// Input queues keyboard input for console `minor`.
func (d *Driver) Input(ctx context.Context, minor uint32, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	return d.ipc.Send(ctx, Interrupt, d.self, ipc.Message{
		Type:   ipc.MsgKeyboard,
		Device: minor,
		Buf:    buf,
		Count:  len(buf),
	})
}

// Handle serves one request from the FS task and returns the reply.
func (d *Driver) Handle(msg ipc.Message) ipc.Message {
	log := d.log.WithFields(logrus.Fields{
		"op":    msg.Type.String(),
		"minor": msg.Device,
		"proc":  msg.ProcNr,
	})
	if int(msg.Device) >= len(d.consoles) {
		log.Warn("no such console")
		return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(ENXIO)}
	}
	con := &d.consoles[msg.Device]

	switch msg.Type {
	case ipc.MsgDevOpen, ipc.MsgDevClose:
		return ipc.Message{Type: ipc.MsgSyscallRet}
	case ipc.MsgDevWrite:
		if msg.Count < 0 || msg.Count > len(msg.Buf) {
			return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(EINVAL)}
		}
		n, err := con.out.Write(msg.Buf[:msg.Count])
		if err != nil {
			log.WithError(err).Warn("writing console")
			return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(EIO)}
		}
		return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: n, Count: n}
	case ipc.MsgDevRead:
		if msg.Count < 0 || msg.Count > len(msg.Buf) {
			return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(EINVAL)}
		}
		if con.waiting != nil {
			log.WithField("waiting", con.waiting.proc).
				Warn("console already has a waiting reader")
			return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(EBUSY)}
		}
		if con.in.Len() > 0 {
			n := con.in.Drain(msg.Buf[:msg.Count])
			return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: n, Count: n}
		}
		con.waiting = &reader{proc: msg.ProcNr, buf: msg.Buf[:msg.Count]}
		log.Debug("suspending reader")
		return ipc.Message{Type: ipc.MsgSuspendProc, ProcNr: msg.ProcNr}
	default:
		log.Warn("unsupported request")
		return ipc.Message{Type: ipc.MsgSyscallRet, RetVal: -int(EINVAL)}
	}
}

func (d *Driver) keyboard(ctx context.Context, msg ipc.Message) error {
	if int(msg.Device) >= len(d.consoles) {
		d.log.WithField("minor", msg.Device).Warn("input for no such console")
		return nil
	}
	con := &d.consoles[msg.Device]
	for _, b := range msg.Buf {
		if _, evicted := con.in.Push(b); evicted {
			d.log.WithField("minor", msg.Device).Debug("input buffer overrun")
		}
	}
	if con.waiting == nil || con.in.Len() == 0 {
		return nil
	}

	w := con.waiting
	con.waiting = nil
	n := con.in.Drain(w.buf)
	d.log.WithFields(logrus.Fields{
		"minor": msg.Device,
		"proc":  w.proc,
		"count": n,
	}).Debug("resuming reader")
	if err := d.ipc.Send(ctx, d.self, d.fs, ipc.Message{
		Type:   ipc.MsgResumeProc,
		ProcNr: w.proc,
		Count:  n,
	}); err != nil {
		return fmt.Errorf("resuming `%d`: %w", w.proc, err)
	}
	return nil
}
