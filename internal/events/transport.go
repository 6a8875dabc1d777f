package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// SocketTransport implements Transport on top of the local hub daemon. Each
// subscription owns its own Client connection.
type SocketTransport struct {
	socketPath string
	logger     *slog.Logger
	clientOpts []ClientOption

	mu          sync.Mutex
	subs        map[string]*socketSub
	errHandlers []func(error)
}

type socketSub struct {
	client *Client
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSocketTransport creates a transport for the daemon listening on socketPath.
func NewSocketTransport(socketPath string, logger *slog.Logger, opts ...ClientOption) *SocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketTransport{
		socketPath: socketPath,
		logger:     logger,
		clientOpts: opts,
		subs:       make(map[string]*socketSub),
	}
}

// OnError registers a callback for connection failures that happen after
// Subscribe returned.
func (t *SocketTransport) OnError(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errHandlers = append(t.errHandlers, handler)
}

func (t *SocketTransport) reportError(err error) {
	t.mu.Lock()
	handlers := append([]func(error){}, t.errHandlers...)
	t.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}

// Subscribe connects to the hub and starts delivering events on channel to
// handler. The subscription outlives ctx; it ends with Unsubscribe.
func (t *SocketTransport) Subscribe(ctx context.Context, channel string, fromPosition int64, handler func(models.RemoteEvent)) (Subscription, error) {
	opts := append([]ClientOption{
		WithClientLogger(t.logger),
		WithDisconnectHandler(func(err error) {
			t.reportError(&models.TransportError{Channel: channel, Err: err})
		}),
	}, t.clientOpts...)

	client := NewClient(t.socketPath, opts...)
	if err := client.Subscribe(channel, fromPosition); err != nil {
		return Subscription{}, &models.TransportError{Channel: channel, Err: err}
	}
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return Subscription{}, &models.TransportError{Channel: channel, Err: err}
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := client.Listen(listenCtx)
	if err != nil {
		cancel()
		_ = client.Close()
		return Subscription{}, &models.TransportError{Channel: channel, Err: err}
	}

	sub := Subscription{ID: uuid.NewString(), Channel: channel}
	s := &socketSub{client: client, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		for ev := range events {
			if remote, ok := ev.RemoteEvent(); ok {
				handler(remote)
			}
		}
	}()

	t.mu.Lock()
	t.subs[sub.ID] = s
	t.mu.Unlock()

	t.logger.Info("subscribed to hub", "channel", channel, "from_sequence", fromPosition)
	return sub, nil
}

// Unsubscribe stops delivery and closes the subscription's connection.
func (t *SocketTransport) Unsubscribe(sub Subscription) error {
	t.mu.Lock()
	s, ok := t.subs[sub.ID]
	delete(t.subs, sub.ID)
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown subscription %q", sub.ID)
	}

	s.cancel()
	err := s.client.Close()
	<-s.done
	return err
}

// Close ends every subscription.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	ids := make([]Subscription, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, Subscription{ID: id})
	}
	t.mu.Unlock()

	var firstErr error
	for _, sub := range ids {
		if err := t.Unsubscribe(sub); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
