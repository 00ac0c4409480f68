package mcp

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/mcpbus/pkg/metricskey"
	"github.com/effective-security/xlog"
)

// replier binds an inbound message to its reply address
// and publishes at most one response to it.
type replier struct {
	tr   transport.Transport
	msg  *transport.Message
	sent atomic.Bool
}

func newReplier(tr transport.Transport, msg *transport.Message) *replier {
	return &replier{
		tr:  tr,
		msg: msg,
	}
}

// Send publishes the response to the reply address.
// Only the first call publishes, later calls are dropped.
// A publish failure is returned marked as ErrTransportFailure,
// the response is considered lost and is not retried.
func (r *replier) Send(ctx context.Context, resp *Response) error {
	if !r.sent.CompareAndSwap(false, true) {
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "duplicate_reply",
			"subject", r.msg.Subject,
			"reply", r.msg.Reply,
		)
		return nil
	}

	status := replyStatus(resp)
	if r.msg.Reply == "" {
		metricskey.StatsRepliesDropped.IncrCounter(1, status)
		if resp.Error != nil && resp.Error.Kind() == KindMalformedRequest {
			// nobody else will ever see this request failed
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "no_reply_address",
				"subject", r.msg.Subject,
				"err", resp.Error.Message,
			)
		} else {
			logger.ContextKV(ctx, xlog.DEBUG,
				"reason", "no_reply_address",
				"subject", r.msg.Subject,
				"id", string(resp.ID),
			)
		}
		return nil
	}

	js, err := json.Marshal(resp)
	if err != nil {
		metricskey.StatsRepliesFailed.IncrCounter(1, status)
		return errors.Wrap(err, "failed to marshal response")
	}

	if err = r.tr.Publish(ctx, r.msg.Reply, js); err != nil {
		metricskey.StatsRepliesFailed.IncrCounter(1, status)
		err = errors.Mark(errors.Wrapf(err, "failed to publish reply to %s", r.msg.Reply), ErrTransportFailure)
		logger.ContextKV(ctx, xlog.ERROR,
			"reply", r.msg.Reply,
			"id", string(resp.ID),
			"err", err.Error(),
		)
		return err
	}

	metricskey.StatsRepliesPublished.IncrCounter(1, status)
	return nil
}

// Sent returns true if a response was already sent or dropped
func (r *replier) Sent() bool {
	return r.sent.Load()
}

func replyStatus(resp *Response) string {
	if resp.Error != nil {
		return "error"
	}
	return "ok"
}
