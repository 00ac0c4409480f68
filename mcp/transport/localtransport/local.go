// Package localtransport provides in-process implementation of
// transport.Transport, for tests and for embedding the server.
package localtransport

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/google/uuid"
)

// InboxPrefix is the prefix of generated reply addresses
const InboxPrefix = "_INBOX."

// ErrClosed is returned by operations on a closed transport
var ErrClosed = errors.New("transport is closed")

// Transport delivers messages between subscribers in the same process.
// Messages published to a subject with queue subscribers are delivered
// to one member of each queue group, round robin.
type Transport struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	next   map[string]int
	closed bool
	buffer int
}

// Option configures the transport
type Option func(*Transport)

// WithBuffer sets the per-subscription buffer size
func WithBuffer(size int) Option {
	return func(t *Transport) {
		t.buffer = size
	}
}

// New returns a new in-process transport
func New(opts ...Option) *Transport {
	t := &Transport{
		subs:   make(map[string][]*subscription),
		next:   make(map[string]int),
		buffer: transport.DefaultStreamBuffer,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type subscription struct {
	t       *Transport
	subject string
	queue   string
	stream  *transport.Stream
	once    sync.Once
}

func (s *subscription) Messages() <-chan *transport.Message {
	return s.stream.Messages()
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.t.remove(s)
		s.stream.Close()
	})
	return nil
}

// Subscribe implements transport.Transport
func (t *Transport) Subscribe(_ context.Context, subject, queue string) (transport.Subscription, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		t:       t,
		subject: subject,
		queue:   queue,
		stream:  transport.NewStream(t.buffer),
	}
	t.subs[subject] = append(t.subs[subject], sub)
	return sub, nil
}

// Publish implements transport.Transport
func (t *Transport) Publish(ctx context.Context, subject string, data []byte) error {
	return t.publish(ctx, &transport.Message{Subject: subject, Data: data})
}

// PublishRequest publishes data with the reply address,
// the way a requester does before awaiting the reply.
func (t *Transport) PublishRequest(ctx context.Context, subject, reply string, data []byte) error {
	return t.publish(ctx, &transport.Message{Subject: subject, Reply: reply, Data: data})
}

// Request implements transport.Transport
func (t *Transport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	inbox := NewInbox()
	sub, err := t.Subscribe(ctx, inbox, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err = t.PublishRequest(ctx, subject, inbox, data); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			return nil, ErrClosed
		}
		return msg.Data, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "request to %s", subject)
	}
}

// Close closes all subscriptions
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	var all []*subscription
	for _, list := range t.subs {
		all = append(all, list...)
	}
	t.subs = make(map[string][]*subscription)
	t.mu.Unlock()

	for _, sub := range all {
		sub.once.Do(sub.stream.Close)
	}
	return nil
}

// NewInbox returns a unique reply address
func NewInbox() string {
	return InboxPrefix + uuid.NewString()
}

func (t *Transport) publish(ctx context.Context, msg *transport.Message) error {
	if msg.Subject == "" {
		return errors.New("subject is required")
	}

	targets, err := t.targets(msg.Subject)
	if err != nil {
		return err
	}

	for _, sub := range targets {
		// each subscriber owns its copy of the message
		cp := *msg
		if !sub.stream.Push(ctx, &cp) {
			if ctx.Err() != nil {
				return errors.Wrapf(ctx.Err(), "publish to %s", msg.Subject)
			}
		}
	}
	return nil
}

// targets returns all plain subscribers and one member of each queue group
func (t *Transport) targets(subject string) ([]*subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	var targets []*subscription
	groups := map[string][]*subscription{}
	for _, sub := range t.subs[subject] {
		if sub.queue == "" {
			targets = append(targets, sub)
		} else {
			groups[sub.queue] = append(groups[sub.queue], sub)
		}
	}
	for queue, members := range groups {
		key := subject + "|" + queue
		idx := t.next[key] % len(members)
		t.next[key] = idx + 1
		targets = append(targets, members[idx])
	}
	return targets, nil
}

func (t *Transport) remove(s *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.subs[s.subject]
	for i, sub := range list {
		if sub == s {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.subs, s.subject)
	} else {
		t.subs[s.subject] = list
	}
}
