package events

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/livekanban/internal/models"
)

func TestSocketTransport_DeliversRemoteEvents(t *testing.T) {
	d := setupMockDaemon(t)
	tr := NewSocketTransport(d.socketPath, nil)
	t.Cleanup(func() { _ = tr.Close() })

	got := make(chan models.RemoteEvent, 4)
	sub, err := tr.Subscribe(context.Background(), "board", FromLatest, func(ev models.RemoteEvent) {
		got <- ev
	})
	require.NoError(t, err)
	assert.Equal(t, "board", sub.Channel)
	assert.NotEmpty(t, sub.ID)

	msg := d.expect(t, MsgSubscribe)
	assert.Equal(t, "board", msg.Subscribe.Channel)

	d.push(t, eventMsg(7, "t1"))
	// Control traffic is not delivered to the handler
	d.push(t, Message{Version: ProtocolVersion, Type: MsgEvent, Event: &Event{Type: EventPong, SequenceID: 8}})

	select {
	case ev := <-got:
		assert.Equal(t, "t1", ev.TaskID)
		assert.Equal(t, int64(7), ev.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.Never(t, func() bool { return len(got) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestSocketTransport_SubscribeOutlivesContext(t *testing.T) {
	d := setupMockDaemon(t)
	tr := NewSocketTransport(d.socketPath, nil)
	t.Cleanup(func() { _ = tr.Close() })

	got := make(chan models.RemoteEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := tr.Subscribe(ctx, "board", FromLatest, func(ev models.RemoteEvent) { got <- ev })
	require.NoError(t, err)
	cancel()

	d.expect(t, MsgSubscribe)
	d.push(t, eventMsg(1, "t1"))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription ended with its context")
	}
}

func TestSocketTransport_Unsubscribe(t *testing.T) {
	d := setupMockDaemon(t)
	tr := NewSocketTransport(d.socketPath, nil)

	var mu sync.Mutex
	count := 0
	sub, err := tr.Subscribe(context.Background(), "board", FromLatest, func(models.RemoteEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	d.expect(t, MsgSubscribe)

	require.NoError(t, tr.Unsubscribe(sub))
	assert.Error(t, tr.Unsubscribe(sub), "second unsubscribe reports unknown subscription")

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestSocketTransport_SubscribeFailureIsTransportError(t *testing.T) {
	tr := NewSocketTransport(filepath.Join(t.TempDir(), "absent.sock"), nil)

	_, err := tr.Subscribe(context.Background(), "board", FromLatest, func(models.RemoteEvent) {})
	require.Error(t, err)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "board", te.Channel)

	var de *DaemonError
	assert.True(t, errors.As(err, &de))
}

func TestSocketTransport_OnErrorAfterGivingUp(t *testing.T) {
	d := setupMockDaemon(t)
	tr := NewSocketTransport(d.socketPath, nil, WithRetryPolicy(1, 10*time.Millisecond))
	t.Cleanup(func() { _ = tr.Close() })

	errs := make(chan error, 1)
	tr.OnError(func(err error) { errs <- err })

	_, err := tr.Subscribe(context.Background(), "board", FromLatest, func(models.RemoteEvent) {})
	require.NoError(t, err)
	d.expect(t, MsgSubscribe)

	_ = d.listener.Close()
	d.dropAll()

	select {
	case err := <-errs:
		var te *models.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "board", te.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("OnError handler never called")
	}
}

// ============================================================================
// PublishWithRetry Tests
// ============================================================================

type flakyPublisher struct {
	failures int
	calls    int
}

func (f *flakyPublisher) Publish(context.Context, string, models.RemoteEvent) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("hub busy")
	}
	return nil
}

func TestPublishWithRetry(t *testing.T) {
	t.Run("nil publisher is a no-op", func(t *testing.T) {
		assert.NoError(t, PublishWithRetry(context.Background(), nil, "board", models.RemoteEvent{}, 3))
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := &flakyPublisher{failures: 2}
		assert.NoError(t, PublishWithRetry(context.Background(), p, "board", models.RemoteEvent{}, 3))
		assert.Equal(t, 3, p.calls)
	})

	t.Run("returns last error when retries run out", func(t *testing.T) {
		p := &flakyPublisher{failures: 5}
		assert.EqualError(t, PublishWithRetry(context.Background(), p, "board", models.RemoteEvent{}, 2), "hub busy")
		assert.Equal(t, 2, p.calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &flakyPublisher{failures: 5}
		assert.ErrorIs(t, PublishWithRetry(ctx, p, "board", models.RemoteEvent{}, 3), context.Canceled)
		assert.Equal(t, 1, p.calls)
	})
}
