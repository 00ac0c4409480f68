// Package transport defines the publish/subscribe contract consumed by the
// MCP server runtime and the client. Implementations live in subpackages:
// natstransport (NATS), redistransport (Redis pub/sub) and localtransport
// (in-process).
package transport

import (
	"context"
	"sync"
)

//go:generate mockgen -source=transport.go -destination=../../mocks/mockmcp/transport_mock.gen.go -package mockmcp

// Message is a single inbound message delivered by a subscription.
type Message struct {
	// Subject the message was published to
	Subject string
	// Reply is the requester-scoped reply address, empty for fire-and-forget
	Reply string
	// Data is the raw payload
	Data []byte
}

// Subscription is an active subscription on a subject.
type Subscription interface {
	// Messages returns the stream of inbound messages.
	// The channel is closed when the subscription ends.
	Messages() <-chan *Message
	// Unsubscribe stops the delivery and closes the Messages channel.
	Unsubscribe() error
}

// Transport is the messaging capability used by the server and the client.
type Transport interface {
	// Subscribe starts delivery of messages published to subject.
	// When queue is not empty, the subscription joins the queue group
	// and each message is delivered to only one member of the group.
	Subscribe(ctx context.Context, subject, queue string) (Subscription, error)
	// Publish sends data to subject. Failures are reported, never retried.
	Publish(ctx context.Context, subject string, data []byte) error
	// Request publishes data to subject with a unique reply address
	// and waits for a single reply.
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	// Close releases the underlying connection.
	Close() error
}

// DefaultStreamBuffer is the default size of the subscription buffer
const DefaultStreamBuffer = 256

// Stream is a closable message channel that is safe to push into
// from concurrent producers while it is being closed.
type Stream struct {
	lock   sync.RWMutex
	ch     chan *Message
	done   chan struct{}
	once   sync.Once
	closed bool
}

// NewStream returns a stream with the given buffer size
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &Stream{
		ch:   make(chan *Message, buffer),
		done: make(chan struct{}),
	}
}

// Messages returns the receive side of the stream
func (s *Stream) Messages() <-chan *Message {
	return s.ch
}

// Push delivers the message, blocking while the buffer is full.
// It returns false if the stream was closed or ctx is done.
func (s *Stream) Push(ctx context.Context, msg *Message) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close closes the stream. It is safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		// unblock pending producers before taking the write lock
		close(s.done)
		s.lock.Lock()
		s.closed = true
		close(s.ch)
		s.lock.Unlock()
	})
}
