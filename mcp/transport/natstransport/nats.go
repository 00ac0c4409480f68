// Package natstransport implements transport.Transport over NATS core
// publish/subscribe, using NATS reply inboxes for correlation.
package natstransport

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/xlog"
	"github.com/nats-io/nats.go"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbus/mcp/transport", "natstransport")

// DefaultURL is the NATS endpoint used when none is configured
const DefaultURL = nats.DefaultURL

// Config provides the connection settings
type Config struct {
	// URL of the NATS server, DefaultURL when empty
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Name of the connection, reported to the server
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// ReconnectWait is the delay between reconnect attempts
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	// Buffer is the per-subscription buffer size
	Buffer int `json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

// Transport is a NATS connection
type Transport struct {
	nc     *nats.Conn
	buffer int
}

// Connect dials the NATS server.
// The connection reconnects forever, and the initial connect is retried
// in background when the server is not available yet.
func Connect(cfg Config, opts ...nats.Option) (*Transport, error) {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}

	all := []nats.Option{
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.KV(xlog.WARNING, "status", "disconnected", "err", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.KV(xlog.INFO, "status", "reconnected", "url", nc.ConnectedUrlRedacted())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.KV(xlog.ERROR, "subject", subject, "err", err.Error())
		}),
	}
	if cfg.Name != "" {
		all = append(all, nats.Name(cfg.Name))
	}
	if cfg.ReconnectWait > 0 {
		all = append(all, nats.ReconnectWait(cfg.ReconnectWait))
	}
	all = append(all, opts...)

	nc, err := nats.Connect(url, all...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS")
	}

	logger.KV(xlog.INFO, "status", "connecting", "connected", nc.IsConnected(), "name", cfg.Name)
	return New(nc, cfg.Buffer), nil
}

// New returns a transport over an established connection
func New(nc *nats.Conn, buffer int) *Transport {
	return &Transport{
		nc:     nc,
		buffer: buffer,
	}
}

// Conn returns the underlying connection
func (t *Transport) Conn() *nats.Conn {
	return t.nc
}

type subscription struct {
	sub    *nats.Subscription
	stream *transport.Stream
	once   sync.Once
	err    error
}

func (s *subscription) Messages() <-chan *transport.Message {
	return s.stream.Messages()
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.err = errors.Wrapf(err, "failed to unsubscribe from %s", s.sub.Subject)
		}
		s.stream.Close()
	})
	return s.err
}

// Subscribe implements transport.Transport
func (t *Transport) Subscribe(_ context.Context, subject, queue string) (transport.Subscription, error) {
	stream := transport.NewStream(t.buffer)
	handler := func(m *nats.Msg) {
		stream.Push(context.Background(), &transport.Message{
			Subject: m.Subject,
			Reply:   m.Reply,
			Data:    m.Data,
		})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = t.nc.QueueSubscribe(subject, queue, handler)
	} else {
		sub, err = t.nc.Subscribe(subject, handler)
	}
	if err != nil {
		stream.Close()
		return nil, errors.Wrapf(err, "failed to subscribe to %s", subject)
	}

	logger.KV(xlog.DEBUG, "status", "subscribed", "subject", subject, "queue", queue)
	return &subscription{
		sub:    sub,
		stream: stream,
	}, nil
}

// Publish implements transport.Transport
func (t *Transport) Publish(_ context.Context, subject string, data []byte) error {
	if err := t.nc.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", subject)
	}
	return nil
}

// Request implements transport.Transport
func (t *Transport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := t.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s", subject)
	}
	return msg.Data, nil
}

// Close drains the subscriptions and closes the connection
func (t *Transport) Close() error {
	if t.nc.IsClosed() {
		return nil
	}
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
		return errors.Wrap(err, "failed to drain NATS connection")
	}
	return nil
}
