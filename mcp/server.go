package mcp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// State is the lifecycle state of the server
type State int32

// Server states
const (
	// StateBuilt holds tools and capabilities, not subscribed yet
	StateBuilt State = iota
	// StateRunning is subscribed and dispatching
	StateRunning
	// StateStopped is terminal
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server subscribes to the inbound subject and dispatches every
// message on its own goroutine, replying to the message reply address.
type Server struct {
	tr         transport.Transport
	subject    string
	opts       options
	registry   *Registry
	dispatcher *Dispatcher

	state    atomic.Int32
	ready    chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	inflight atomic.Int64
}

// NewServer returns a server in Built state.
// Registering two tools with the same name fails the construction.
func NewServer(tr transport.Transport, subject string, opts ...Option) (*Server, error) {
	if tr == nil {
		return nil, errors.New("transport is required")
	}
	if subject == "" {
		return nil, errors.New("subject is required")
	}

	o := options{
		caps:         DefaultCapabilities(),
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	o.name = values.StringsCoalesce(o.name, DefaultServerName)
	o.version = values.StringsCoalesce(o.version, DefaultServerVersion)

	registry := NewRegistry()
	for _, tool := range o.tools {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}

	s := &Server{
		tr:       tr,
		subject:  subject,
		opts:     o,
		registry: registry,
		dispatcher: NewDispatcher(registry,
			Implementation{Name: o.name, Version: o.version},
			o.caps),
		ready:  make(chan struct{}),
		stopCh: make(chan struct{}),
	}
	return s, nil
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return State(s.state.Load())
}

// Subject returns the inbound subject
func (s *Server) Subject() string {
	return s.subject
}

// Registry returns the tool registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Dispatcher returns the request dispatcher
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Ready is closed once Run has attempted to subscribe to the inbound subject.
// If the subscription failed, Run returns the error and State is StateStopped.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Run subscribes to the inbound subject and serves requests until ctx is
// done or Stop is called. On exit, in-flight requests are drained for up to
// the drain timeout, then their contexts are cancelled and they are abandoned.
// Run can be called only once.
func (s *Server) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateBuilt), int32(StateRunning)) {
		return errors.Mark(errors.Newf("server can not run in %s state", s.State()), ErrInvalidState)
	}
	defer s.state.Store(int32(StateStopped))

	sub, err := s.tr.Subscribe(ctx, s.subject, s.opts.queue)
	close(s.ready)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to subscribe to %s", s.subject), ErrTransportFailure)
	}

	// requests outlive ctx until the drain timeout
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	logger.KV(xlog.INFO,
		"status", "running",
		"server", s.opts.name,
		"version", s.opts.version,
		"subject", s.subject,
		"queue", s.opts.queue,
		"tools", s.registry.Names(),
	)

	msgs := sub.Messages()
	closed := false
loop:
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				closed = true
				logger.KV(xlog.WARNING, "reason", "subscription_closed", "subject", s.subject)
				break loop
			}
			s.spawn(reqCtx, msg)
		case <-ctx.Done():
			break loop
		case <-s.stopCh:
			break loop
		}
	}

	if err = sub.Unsubscribe(); err != nil {
		logger.KV(xlog.ERROR, "reason", "unsubscribe", "subject", s.subject, "err", err.Error())
	}
	if !closed {
		s.dispatchBuffered(reqCtx, msgs)
	}

	s.drain(cancel)
	return nil
}

// Stop initiates the shutdown. It is safe to call more than once,
// and before Run, in which case the server can not be run anymore.
func (s *Server) Stop() {
	s.state.CompareAndSwap(int32(StateBuilt), int32(StateStopped))
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// dispatchBuffered handles messages accepted by the subscription
// before unsubscribe, without waiting for new ones
func (s *Server) dispatchBuffered(ctx context.Context, msgs <-chan *transport.Message) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			s.spawn(ctx, msg)
		default:
			return
		}
	}
}

func (s *Server) drain(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.opts.drainTimeout > 0 {
		timer := time.NewTimer(s.opts.drainTimeout)
		defer timer.Stop()

		select {
		case <-done:
			logger.KV(xlog.INFO, "status", "stopped", "subject", s.subject)
			return
		case <-timer.C:
		}
	}

	select {
	case <-done:
		logger.KV(xlog.INFO, "status", "stopped", "subject", s.subject)
		return
	default:
	}

	cancel()
	logger.KV(xlog.WARNING,
		"status", "stopped",
		"subject", s.subject,
		"abandoned", s.inflight.Load(),
		"drain_timeout", s.opts.drainTimeout,
	)
}

func (s *Server) spawn(ctx context.Context, msg *transport.Message) {
	s.wg.Add(1)
	s.inflight.Add(1)
	go func() {
		defer func() {
			s.inflight.Add(-1)
			s.wg.Done()
		}()
		s.handle(ctx, msg)
	}()
}

func (s *Server) handle(ctx context.Context, msg *transport.Message) {
	r := newReplier(s.tr, msg)
	defer func() {
		if rec := recover(); rec != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "panic",
				"subject", msg.Subject,
				"panic", rec,
			)
			if !r.Sent() {
				_ = r.Send(ctx, NewErrorResponse(nil, errors.Newf("internal error: %v", rec)))
			}
		}
	}()

	resp := s.dispatcher.Dispatch(ctx, msg.Data)
	// publish failures are logged and counted by the replier
	_ = r.Send(ctx, resp)
}
