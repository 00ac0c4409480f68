// Package redistransport implements transport.Transport over Redis pub/sub.
//
// Every message is published as a JSON frame carrying the payload and the
// optional reply channel. Reply addresses are channels named
// `<prefix>inbox.<uuid>`, subscribed by the requester before publishing.
// Queue groups are emulated with a per-message claim key, so only
// one member of the group handles each message.
//
// A claim is at most once. If the SETNX on the claim key fails with a Redis
// error, no member of the group takes the message: it is dropped and logged
// at ERROR, and a requester waiting on the reply address gets its timeout.
package redistransport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbus/mcp/transport", "redistransport")

// DefaultClaimTTL is how long a queue group claim is kept
const DefaultClaimTTL = time.Minute

// Frame is the message published on a channel
type Frame struct {
	ID    string `json:"id"`
	Reply string `json:"reply,omitempty"`
	Data  []byte `json:"data"`
}

// Transport is a Redis pub/sub transport
type Transport struct {
	client   redis.UniversalClient
	prefix   string
	buffer   int
	claimTTL time.Duration
}

// Option configures the transport
type Option func(*Transport)

// WithPrefix sets the prefix of the reply and claim keys
func WithPrefix(prefix string) Option {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// WithBuffer sets the per-subscription buffer size
func WithBuffer(size int) Option {
	return func(t *Transport) {
		t.buffer = size
	}
}

// WithClaimTTL sets the expiration of queue group claims
func WithClaimTTL(ttl time.Duration) Option {
	return func(t *Transport) {
		t.claimTTL = ttl
	}
}

// New returns a transport over the client
func New(client redis.UniversalClient, opts ...Option) *Transport {
	t := &Transport{
		client:   client,
		buffer:   transport.DefaultStreamBuffer,
		claimTTL: DefaultClaimTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect parses the Redis URL and returns a transport.
// The connection is verified with PING.
func Connect(ctx context.Context, url string, opts ...Option) (*Transport, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	client := redis.NewClient(options)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return New(client, opts...), nil
}

// NewInbox returns a unique reply channel
func (t *Transport) NewInbox() string {
	return t.prefix + "inbox." + uuid.NewString()
}

type subscription struct {
	ps     *redis.PubSub
	stream *transport.Stream
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func (s *subscription) Messages() <-chan *transport.Message {
	return s.stream.Messages()
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		if err := s.ps.Close(); err != nil {
			s.err = errors.Wrap(err, "failed to close subscription")
		}
		s.stream.Close()
		s.wg.Wait()
	})
	return s.err
}

// Subscribe implements transport.Transport
func (t *Transport) Subscribe(ctx context.Context, subject, queue string) (transport.Subscription, error) {
	sub, err := t.subscribe(ctx, subject)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		t.receive(loopCtx, sub, queue)
	}()

	logger.KV(xlog.DEBUG, "status", "subscribed", "subject", subject, "queue", queue)
	return sub, nil
}

// subscribe waits for the subscription to be confirmed,
// so a message published after it returns is not lost
func (t *Transport) subscribe(ctx context.Context, subject string) (*subscription, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	ps := t.client.Subscribe(ctx, subject)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "failed to subscribe to %s", subject)
	}
	return &subscription{
		ps:     ps,
		stream: transport.NewStream(t.buffer),
	}, nil
}

func (t *Transport) receive(ctx context.Context, sub *subscription, queue string) {
	ch := sub.ps.Channel()
	for {
		var m *redis.Message
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m = msg
		}

		var frame Frame
		if err := json.Unmarshal([]byte(m.Payload), &frame); err != nil {
			logger.KV(xlog.ERROR, "reason", "frame", "channel", m.Channel, "err", err.Error())
			continue
		}
		if queue != "" && !t.claim(ctx, m.Channel, queue, frame.ID) {
			continue
		}
		if !sub.stream.Push(ctx, &transport.Message{
			Subject: m.Channel,
			Reply:   frame.Reply,
			Data:    frame.Data,
		}) {
			return
		}
	}
}

// claim returns true if this member of the queue group won the message.
// A Redis error loses the claim for every member.
func (t *Transport) claim(ctx context.Context, channel, queue, id string) bool {
	if id == "" {
		return true
	}
	key := t.prefix + "claim." + channel + "." + queue + "." + id
	ok, err := t.client.SetNX(ctx, key, 1, t.claimTTL).Result()
	if err != nil {
		logger.KV(xlog.ERROR, "reason", "claim", "status", "dropped", "key", key, "err", err.Error())
		return false
	}
	return ok
}

// Publish implements transport.Transport
func (t *Transport) Publish(ctx context.Context, subject string, data []byte) error {
	return t.publish(ctx, subject, "", data)
}

func (t *Transport) publish(ctx context.Context, subject, reply string, data []byte) error {
	js, err := json.Marshal(Frame{
		ID:    uuid.NewString(),
		Reply: reply,
		Data:  data,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal frame")
	}
	if err = t.client.Publish(ctx, subject, js).Err(); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", subject)
	}
	return nil
}

// Request implements transport.Transport
func (t *Transport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	inbox := t.NewInbox()
	sub, err := t.Subscribe(ctx, inbox, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err = t.publish(ctx, subject, inbox, data); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			return nil, errors.Newf("subscription to %s closed", inbox)
		}
		return msg.Data, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "request to %s", subject)
	}
}

// Close closes the Redis client
func (t *Transport) Close() error {
	if err := t.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return errors.Wrap(err, "failed to close Redis client")
	}
	return nil
}
