// Package fsserver implements the FS task: it brings the root volume up and
// then serves file requests one message at a time.
package fsserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/konixfs/pkg/filedesc"
	"github.com/weberc2/konixfs/pkg/fileops"
	"github.com/weberc2/konixfs/pkg/inode"
	"github.com/weberc2/konixfs/pkg/ipc"
	"github.com/weberc2/konixfs/pkg/layout"
	"github.com/weberc2/konixfs/pkg/super"
	. "github.com/weberc2/konixfs/pkg/types"
)

// Gateway is the driver access the FS task needs.
type Gateway interface {
	fileops.Device
	Open(ctx context.Context, dev Dev) error
	Geometry(ctx context.Context, dev Dev) (Geometry, error)
}

type Options struct {
	Self    ProcNr
	RootDev Dev

	// Format lays out an empty volume on the root device before loading it.
	Format bool
	Layout layout.Params

	SuperSlots int
	InodeSlots int
	DescSlots  int

	IPC     ipc.Endpoint
	Gateway Gateway
	Procs   filedesc.FileTables
	Log     logrus.FieldLogger
}

// Pending is a request whose reply waits on a RESUME_PROC from a driver.
type Pending struct {
	Proc  ProcNr    `json:"proc"`
	Op    string    `json:"op"`
	FD    int       `json:"fd"`
	Count int       `json:"count"`
	Since time.Time `json:"since"`
}

// Stat is the FS_STAT reply payload. Every field is a copy, so it may be
// read outside the FS task.
type Stat struct {
	Superblocks []Superblock     `json:"superblocks"`
	Inodes      []inode.Inode    `json:"inodes"`
	Descriptors []filedesc.Entry `json:"descriptors"`
	Pending     []Pending        `json:"pending"`
}

type Server struct {
	opts    Options
	supers  *super.Registry
	inodes  *inode.Cache
	descs   *filedesc.Table
	ops     *fileops.Ops
	bridge  *filedesc.Bridge
	pending map[ProcNr]Pending
	log     logrus.FieldLogger
}

func New(opts Options) *Server {
	supers := super.NewRegistry(opts.Gateway, opts.SuperSlots, opts.Log)
	inodes := inode.NewCache(supers, opts.Gateway, opts.InodeSlots, opts.Log)
	descs := filedesc.NewTable(opts.DescSlots)
	return &Server{
		opts:   opts,
		supers: supers,
		inodes: inodes,
		descs:  descs,
		ops: &fileops.Ops{
			Dev:         opts.RootDev,
			Device:      opts.Gateway,
			Supers:      supers,
			Inodes:      inodes,
			Descs:       descs,
			Procs:       opts.Procs,
			Log:         opts.Log,
			FileSectors: opts.Layout.DefaultFileSectors,
		},
		bridge: &filedesc.Bridge{
			Procs:  opts.Procs,
			Descs:  descs,
			Inodes: inodes,
		},
		pending: map[ProcNr]Pending{},
		log:     opts.Log.WithField("task", "fs"),
	}
}

func (s *Server) Nr() ProcNr { return s.opts.Self }

func (s *Server) Name() string { return "fs" }

// Init opens the root device, formats it if asked to, loads its superblock
// and takes a lasting reference to the root directory.
func (s *Server) Init(ctx context.Context) error {
	dev := s.opts.RootDev
	if err := s.opts.Gateway.Open(ctx, dev); err != nil {
		return fmt.Errorf("initializing fs: %w", err)
	}
	if s.opts.Format {
		if _, err := layout.Format(
			ctx,
			s.opts.Gateway,
			dev,
			s.opts.Layout,
			s.log,
		); err != nil {
			return fmt.Errorf("initializing fs: %w", err)
		}
	}
	sb, err := s.supers.Load(ctx, dev)
	if err != nil {
		return fmt.Errorf("initializing fs: %w", err)
	}
	if sb.Magic != MagicV1 {
		return Fatalf("initializing fs: bad magic `%#x` on `%s`", sb.Magic, dev)
	}
	root, err := s.inodes.Acquire(ctx, dev, sb.RootInode)
	if err != nil {
		return fmt.Errorf("initializing fs: acquiring root inode: %w", err)
	}
	if node := s.inodes.Inode(root); !node.Mode.IsDir() {
		return Fatalf("initializing fs: root inode is a `%s`", node.Mode)
	}
	s.ops.Root = root
	s.log.WithField("dev", dev.String()).Info("fs ready")
	return nil
}

// Run initializes the file system and then serves requests until `ctx` is
// cancelled or a fatal error occurs.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	for {
		msg, err := s.opts.IPC.Receive(ctx, s.opts.Self, Any)
		if err != nil {
			return err
		}
		to, rsp, err := s.Dispatch(ctx, msg)
		if err != nil {
			return err
		}
		if rsp == nil {
			continue
		}
		if err := s.opts.IPC.Send(ctx, s.opts.Self, to, *rsp); err != nil {
			return fmt.Errorf("replying to `%d`: %w", to, err)
		}
	}
}

// Dispatch handles one message. It returns the reply and its recipient, or a
// nil reply if the request was suspended. Any error is fatal to the task.
func (s *Server) Dispatch(
	ctx context.Context,
	msg ipc.Message,
) (ProcNr, *ipc.Message, error) {
	src := msg.Source
	log := s.log.WithFields(logrus.Fields{
		"op":   msg.Type.String(),
		"proc": src,
	})
	if p, suspended := s.pending[src]; suspended && msg.Type != ipc.MsgResumeProc {
		return NoProc, nil, Fatalf(
			"%s from `%d`, which is suspended in %s since `%s`",
			msg.Type,
			src,
			p.Op,
			p.Since.Format(time.RFC3339Nano),
		)
	}

	rsp := ipc.Message{Type: ipc.MsgSyscallRet}
	var err error
	switch msg.Type {
	case ipc.MsgOpen:
		rsp.FD, err = s.ops.Open(ctx, src, msg.Path, msg.Flags)
		rsp.RetVal, err = s.status(err)
		if rsp.RetVal < 0 {
			rsp.FD = -1
		}
	case ipc.MsgClose:
		rsp.RetVal, err = s.status(s.ops.Close(ctx, src, msg.FD))
	case ipc.MsgRead, ipc.MsgWrite:
		if msg.Count < 0 || msg.Count > len(msg.Buf) {
			rsp.RetVal = -int(EINVAL)
			break
		}
		n, suspended, opErr := s.ops.ReadWrite(
			ctx,
			msg.Type,
			src,
			msg.FD,
			msg.Buf[:msg.Count],
		)
		if suspended {
			s.pending[src] = Pending{
				Proc:  src,
				Op:    msg.Type.String(),
				FD:    msg.FD,
				Count: msg.Count,
				Since: time.Now(),
			}
			log.WithField("fd", msg.FD).Debug("request suspended")
			return src, nil, nil
		}
		if rsp.RetVal, err = s.status(opErr); rsp.RetVal == 0 {
			rsp.RetVal, rsp.Count = n, n
		}
	case ipc.MsgUnlink:
		rsp.RetVal, err = s.status(s.ops.Unlink(ctx, msg.Path))
	case ipc.MsgFork:
		err = s.bridge.OnFork(msg.PID)
	case ipc.MsgExit:
		err = s.bridge.OnExit(msg.PID)
	case ipc.MsgResumeProc:
		p, ok := s.pending[msg.ProcNr]
		if !ok {
			return NoProc, nil, Fatalf(
				"RESUME_PROC from `%d` for `%d`, which isn't suspended",
				src,
				msg.ProcNr,
			)
		}
		delete(s.pending, msg.ProcNr)
		log.WithFields(logrus.Fields{
			"resumed": p.Proc,
			"count":   msg.Count,
			"waited":  time.Since(p.Since).String(),
		}).Debug("request resumed")
		rsp.RetVal, rsp.Count = msg.Count, msg.Count
		return p.Proc, &rsp, nil
	case ipc.MsgFSStat:
		rsp.Payload = s.Stat()
	default:
		return NoProc, nil, Fatalf("unknown message type `%s` from `%d`", msg.Type, src)
	}
	if err != nil {
		return NoProc, nil, err
	}
	if rsp.RetVal < 0 {
		log.WithField("status", rsp.RetVal).Debug("request failed")
	}
	return src, &rsp, nil
}

// status converts an operation error into a reply status. Fatal errors and
// cancellation are passed back instead.
func (s *Server) status(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if IsFatal(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return 0, err
	}
	return Status(err), nil
}

// Stat returns a copy of the FS task's tables.
func (s *Server) Stat() Stat {
	pending := make([]Pending, 0, len(s.pending))
	for _, p := range s.pending {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Proc < pending[j].Proc
	})
	return Stat{
		Superblocks: s.supers.Snapshot(),
		Inodes:      s.inodes.Snapshot(),
		Descriptors: s.descs.Snapshot(),
		Pending:     pending,
	}
}
