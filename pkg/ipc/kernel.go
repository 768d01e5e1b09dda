package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	. "github.com/weberc2/konixfs/pkg/types"
)

const (
	UnknownTaskErr    ConstError = "unknown task"
	DuplicateTaskErr  ConstError = "task already registered"
	DefaultMailboxCap int        = 64
)

// Task is a long-lived server loop hosted by the kernel.
type Task interface {
	Nr() ProcNr
	Name() string
	Run(ctx context.Context) error
}

// Endpoint is the view of the kernel a task needs to exchange messages.
type Endpoint interface {
	Send(ctx context.Context, from, to ProcNr, msg Message) error
	Receive(ctx context.Context, self, from ProcNr) (Message, error)
	SendRecv(
		ctx context.Context,
		self ProcNr,
		to ProcNr,
		msg Message,
	) (Message, error)
}

// Kernel routes messages between registered tasks and hosts their loops on a
// goroutine pool.
type Kernel struct {
	mutex     sync.RWMutex
	mailboxes map[ProcNr]*mailbox
	pool      *ants.Pool
	failures  chan error
	running   sync.WaitGroup
	log       logrus.FieldLogger
}

// NewKernel creates a kernel able to host up to `maxTasks` concurrently
// running tasks.
func NewKernel(maxTasks int, log logrus.FieldLogger) (*Kernel, error) {
	k := Kernel{
		mailboxes: make(map[ProcNr]*mailbox),
		failures:  make(chan error, maxTasks),
		log:       log,
	}
	pool, err := ants.NewPool(
		maxTasks,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(k.onPanic),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task pool: %w", err)
	}
	k.pool = pool
	return &k, nil
}

func (k *Kernel) onPanic(p interface{}) {
	err := Fatalf("task panicked: %v", p)
	k.log.WithError(err).Error("task panicked")
	k.fail(err)
}

func (k *Kernel) fail(err error) {
	select {
	case k.failures <- err:
	default:
	}
}

// Register creates a mailbox for `nr`. Tasks are registered by `Spawn`;
// clients that only ever call `SendRecv` (tests, the introspection server)
// register directly.
func (k *Kernel) Register(nr ProcNr) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	if _, exists := k.mailboxes[nr]; exists {
		return fmt.Errorf("registering `%d`: %w", nr, DuplicateTaskErr)
	}
	k.mailboxes[nr] = newMailbox(nr, DefaultMailboxCap)
	return nil
}

// Spawn registers `task` and starts its loop. A task that returns an error
// other than the context's cancellation is reported by `Wait`.
func (k *Kernel) Spawn(ctx context.Context, task Task) error {
	if err := k.Register(task.Nr()); err != nil {
		return fmt.Errorf("spawning task `%s`: %w", task.Name(), err)
	}
	k.running.Add(1)
	if err := k.pool.Submit(func() {
		defer k.running.Done()
		defer func() {
			// report before `running.Done()` so `Wait` can't miss it
			if p := recover(); p != nil {
				k.onPanic(p)
			}
		}()
		log := k.log.WithFields(logrus.Fields{
			"task": task.Name(),
			"proc": task.Nr(),
		})
		log.Debug("task started")
		if err := task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("task failed")
			k.fail(fmt.Errorf("task `%s`: %w", task.Name(), err))
			return
		}
		log.Debug("task exited")
	}); err != nil {
		k.running.Done()
		return fmt.Errorf("spawning task `%s`: %w", task.Name(), err)
	}
	return nil
}

// Wait blocks until a task fails, every task has exited, or `ctx` is done.
func (k *Kernel) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		k.running.Wait()
		close(done)
	}()
	select {
	case err := <-k.failures:
		return err
	case <-done:
		select {
		case err := <-k.failures:
			return err
		default:
			return nil
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown releases the task pool. Tasks must already have been asked to
// stop by cancelling the context passed to `Spawn`.
func (k *Kernel) Shutdown() { k.pool.Release() }

func (k *Kernel) mailbox(nr ProcNr) (*mailbox, error) {
	k.mutex.RLock()
	defer k.mutex.RUnlock()
	mb, ok := k.mailboxes[nr]
	if !ok {
		return nil, fmt.Errorf("task `%d`: %w", nr, UnknownTaskErr)
	}
	return mb, nil
}

// Send delivers `msg` to `to`'s mailbox on behalf of `from`. Delivery is FIFO
// per sender; `Send` returns once the message is queued.
func (k *Kernel) Send(ctx context.Context, from, to ProcNr, msg Message) error {
	mb, err := k.mailbox(to)
	if err != nil {
		return fmt.Errorf("sending %s from `%d`: %w", msg.Type, from, err)
	}
	msg.Source = from
	select {
	case mb.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message from `from` arrives in `self`'s mailbox.
// `from` may be `Any`. Messages from other senders that arrive meanwhile are
// kept, in order, for later receives.
func (k *Kernel) Receive(ctx context.Context, self, from ProcNr) (Message, error) {
	mb, err := k.mailbox(self)
	if err != nil {
		return Message{}, fmt.Errorf("receiving: %w", err)
	}
	return mb.receive(ctx, func(msg Message) bool {
		return from == Any || msg.Source == from
	})
}

// SendRecv is the rendezvous used for every request/reply exchange: send
// `msg` to `to`, then wait for `to`'s reply. Everything else that arrives
// meanwhile, including non-reply messages from `to` itself, is kept for
// later receives.
func (k *Kernel) SendRecv(
	ctx context.Context,
	self ProcNr,
	to ProcNr,
	msg Message,
) (Message, error) {
	mb, err := k.mailbox(self)
	if err != nil {
		return Message{}, fmt.Errorf("receiving: %w", err)
	}
	if err := k.Send(ctx, self, to, msg); err != nil {
		return Message{}, err
	}
	return mb.receive(ctx, func(rsp Message) bool {
		return rsp.Source == to && rsp.Type.IsReply()
	})
}

// mailbox is read only by its owner, so `stash` needs no locking.
type mailbox struct {
	owner ProcNr
	inbox chan Message
	stash []Message
}

func newMailbox(owner ProcNr, capacity int) *mailbox {
	return &mailbox{owner: owner, inbox: make(chan Message, capacity)}
}

func (mb *mailbox) receive(
	ctx context.Context,
	match func(Message) bool,
) (Message, error) {
	for i, msg := range mb.stash {
		if match(msg) {
			mb.stash = append(mb.stash[:i], mb.stash[i+1:]...)
			return msg, nil
		}
	}
	for {
		select {
		case msg := <-mb.inbox:
			if match(msg) {
				return msg, nil
			}
			mb.stash = append(mb.stash, msg)
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}
