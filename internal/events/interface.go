package events

import (
	"context"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// Subscription identifies one active subscription of a Transport.
type Subscription struct {
	ID      string
	Channel string
}

// Transport delivers remote events to the board. Handlers run on a transport
// goroutine; callers move them onto their own execution context.
type Transport interface {
	// Subscribe starts delivering events published on channel after
	// fromPosition (FromLatest for new events only).
	Subscribe(ctx context.Context, channel string, fromPosition int64, handler func(models.RemoteEvent)) (Subscription, error)

	// Unsubscribe stops delivery for sub.
	Unsubscribe(sub Subscription) error

	// OnError registers a callback for asynchronous transport failures.
	OnError(handler func(error))
}

// Publisher sends remote events to every subscriber of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, event models.RemoteEvent) error
}

// Compile-time verification of the implementations in this package
var (
	_ Publisher = (*Client)(nil)
	_ Transport = (*SocketTransport)(nil)
)
