// Package introspect serves a read-only HTTP view of the FS task's tables.
// The FS task's state is never read directly: every request is an `FS_STAT`
// message, answered by the FS task between client requests.
package introspect

import (
	"context"
	"fmt"
	"sync"
	"time"

	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/konixfs/pkg/fsserver"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

const DefaultTimeout = 5 * time.Second

type Rendezvous interface {
	SendRecv(
		ctx context.Context,
		self ProcNr,
		to ProcNr,
		msg ipc.Message,
	) (ipc.Message, error)
}

type Server struct {
	IPC Rendezvous

	// Self is the mailbox replies are received on. It must be registered
	// with the kernel and used by nothing else.
	Self ProcNr
	FS   ProcNr

	Timeout time.Duration

	// one rendezvous at a time on `Self`
	mutex sync.Mutex
}

func (s *Server) stat() (fsserver.Stat, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rsp, err := s.IPC.SendRecv(ctx, s.Self, s.FS, ipc.Message{
		Type: ipc.MsgFSStat,
	})
	if err != nil {
		return fsserver.Stat{}, fmt.Errorf("requesting fs stat: %w", err)
	}
	stat, ok := rsp.Payload.(fsserver.Stat)
	if !ok {
		return fsserver.Stat{}, fmt.Errorf(
			"requesting fs stat: unexpected payload `%T`",
			rsp.Payload,
		)
	}
	return stat, nil
}

func (s *Server) serve(view func(*fsserver.Stat) interface{}) pz.Handler {
	return func(r pz.Request) pz.Response {
		stat, err := s.stat()
		if err != nil {
			return pz.InternalServerError(struct {
				Message, Error string
			}{
				Message: "fetching fs state",
				Error:   err.Error(),
			})
		}
		return pz.Ok(pz.JSON(view(&stat)))
	}
}

func (s *Server) Superblocks() pz.Handler {
	return s.serve(func(stat *fsserver.Stat) interface{} {
		return nonNil(stat.Superblocks)
	})
}

func (s *Server) Inodes() pz.Handler {
	return s.serve(func(stat *fsserver.Stat) interface{} {
		return nonNil(stat.Inodes)
	})
}

func (s *Server) Descriptors() pz.Handler {
	return s.serve(func(stat *fsserver.Stat) interface{} {
		return nonNil(stat.Descriptors)
	})
}

func (s *Server) Pending() pz.Handler {
	return s.serve(func(stat *fsserver.Stat) interface{} {
		return nonNil(stat.Pending)
	})
}

func (s *Server) Routes() []pz.Route {
	return []pz.Route{
		{Method: "GET", Path: "/superblocks", Handler: s.Superblocks()},
		{Method: "GET", Path: "/inodes", Handler: s.Inodes()},
		{Method: "GET", Path: "/descriptors", Handler: s.Descriptors()},
		{Method: "GET", Path: "/pending", Handler: s.Pending()},
	}
}

// nonNil makes empty tables marshal as `[]` rather than `null`.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
