package localtransport_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/mcpbus/mcp/transport/localtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	tr := localtransport.New()
	defer tr.Close()

	sub1, err := tr.Subscribe(ctx, "test.subject", "")
	require.NoError(t, err)
	sub2, err := tr.Subscribe(ctx, "test.subject", "")
	require.NoError(t, err)

	require.NoError(t, tr.Publish(ctx, "test.subject", []byte("hello")))
	require.NoError(t, tr.Publish(ctx, "other.subject", []byte("ignored")))

	msg := <-sub1.Messages()
	assert.Equal(t, "test.subject", msg.Subject)
	assert.Equal(t, "hello", string(msg.Data))
	assert.Empty(t, msg.Reply)

	msg = <-sub2.Messages()
	assert.Equal(t, "hello", string(msg.Data))

	select {
	case m := <-sub1.Messages():
		t.Fatalf("unexpected message: %s", m.Data)
	default:
	}
}

func TestQueueGroup(t *testing.T) {
	ctx := context.Background()
	tr := localtransport.New()
	defer tr.Close()

	sub1, err := tr.Subscribe(ctx, "work", "workers")
	require.NoError(t, err)
	sub2, err := tr.Subscribe(ctx, "work", "workers")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, tr.Publish(ctx, "work", []byte("job")))
	}

	assert.Len(t, sub1.Messages(), 2)
	assert.Len(t, sub2.Messages(), 2)
}

func TestRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr := localtransport.New()
	defer tr.Close()

	sub, err := tr.Subscribe(ctx, "echo", "")
	require.NoError(t, err)

	go func() {
		for msg := range sub.Messages() {
			_ = tr.Publish(ctx, msg.Reply, append([]byte("re: "), msg.Data...))
		}
	}()

	res, err := tr.Request(ctx, "echo", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "re: ping", string(res))

	t.Run("timeout", func(t *testing.T) {
		tctx, tcancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer tcancel()
		_, err := tr.Request(tctx, "nobody.listens", []byte("ping"))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	tr := localtransport.New()
	defer tr.Close()

	sub, err := tr.Subscribe(ctx, "test", "")
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())

	_, ok := <-sub.Messages()
	assert.False(t, ok)

	// no subscribers is not an error
	require.NoError(t, tr.Publish(ctx, "test", []byte("lost")))
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	tr := localtransport.New()

	sub, err := tr.Subscribe(ctx, "test", "")
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, ok := <-sub.Messages()
	assert.False(t, ok)
	require.NoError(t, sub.Unsubscribe())

	_, err = tr.Subscribe(ctx, "test", "")
	assert.ErrorIs(t, err, localtransport.ErrClosed)
	err = tr.Publish(ctx, "test", nil)
	assert.ErrorIs(t, err, localtransport.ErrClosed)
}

func TestNewInbox(t *testing.T) {
	a := localtransport.NewInbox()
	b := localtransport.NewInbox()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, localtransport.InboxPrefix))
}

func TestInvalidSubject(t *testing.T) {
	ctx := context.Background()
	tr := localtransport.New()
	defer tr.Close()

	_, err := tr.Subscribe(ctx, "", "")
	assert.EqualError(t, err, "subject is required")
	assert.EqualError(t, tr.Publish(ctx, "", nil), "subject is required")
}
