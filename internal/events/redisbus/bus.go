// Package redisbus carries remote events over Redis pub/sub, for boards that
// do not share a machine with the hub daemon.
package redisbus

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/models"
)

const (
	defaultPrefix  = "livekanban"
	defaultBacklog = 256
)

// Bus is a Transport and Publisher backed by a Redis client. Every published
// event gets a per-channel sequence number and is kept in a bounded backlog
// list so subscribers can replay from a position.
type Bus struct {
	rc      *redis.Client
	logger  *slog.Logger
	prefix  string
	backlog int64

	mu          sync.Mutex
	subs        map[string]*subscriber
	errHandlers []func(error)
}

type subscriber struct {
	id      string
	channel string
	ps      *redis.PubSub
	handler func(models.RemoteEvent)
	done    chan struct{}

	// Sequences are assigned before publishing, so concurrent publishers
	// can arrive out of order. Anything at or below floor, or in seen, was
	// already delivered.
	floor int64
	high  int64
	seen  map[int64]struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithKeyPrefix namespaces every key and pub/sub channel.
func WithKeyPrefix(prefix string) Option {
	return func(b *Bus) { b.prefix = prefix }
}

// WithBacklog sets how many events per channel are kept for replay.
func WithBacklog(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.backlog = int64(n)
		}
	}
}

// New creates a bus on rc. The caller owns rc and closes it after the bus.
func New(rc *redis.Client, opts ...Option) *Bus {
	b := &Bus{
		rc:      rc,
		logger:  slog.Default(),
		prefix:  defaultPrefix,
		backlog: defaultBacklog,
		subs:    make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) topic(channel string) string   { return b.prefix + ":events:" + channel }
func (b *Bus) seqKey(channel string) string  { return b.prefix + ":seq:" + channel }
func (b *Bus) listKey(channel string) string { return b.prefix + ":backlog:" + channel }

// Publish stamps the next sequence number on event, appends it to the
// backlog and broadcasts it.
func (b *Bus) Publish(ctx context.Context, channel string, remote models.RemoteEvent) error {
	ev := events.NewEvent(channel, remote)

	seq, err := b.rc.Incr(ctx, b.seqKey(channel)).Result()
	if err != nil {
		return fmt.Errorf("assign sequence: %w", err)
	}
	ev.SequenceID = seq

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := b.rc.Pipeline()
	pipe.RPush(ctx, b.listKey(channel), data)
	pipe.LTrim(ctx, b.listKey(channel), -b.backlog, -1)
	pipe.Publish(ctx, b.topic(channel), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	b.logger.Debug("published event", "channel", channel, "sequence", seq, "action", remote.ActionType)
	return nil
}

// OnError registers a callback for failures after Subscribe returned.
func (b *Bus) OnError(handler func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errHandlers = append(b.errHandlers, handler)
}

func (b *Bus) reportError(err error) {
	b.mu.Lock()
	handlers := slices.Clone(b.errHandlers)
	b.mu.Unlock()

	b.logger.Warn("redis transport error", "error", err)
	for _, h := range handlers {
		h(err)
	}
}

// Subscribe starts delivering events on channel to handler. With
// fromPosition >= 0 the backlog after that sequence number is replayed
// first. The subscription outlives ctx; it ends with Unsubscribe.
func (b *Bus) Subscribe(ctx context.Context, channel string, fromPosition int64, handler func(models.RemoteEvent)) (events.Subscription, error) {
	ps := b.rc.Subscribe(context.WithoutCancel(ctx), b.topic(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return events.Subscription{}, &models.TransportError{Channel: channel, Err: fmt.Errorf("subscribe: %w", err)}
	}

	s := &subscriber{
		id:      uuid.NewString(),
		channel: channel,
		ps:      ps,
		handler: handler,
		done:    make(chan struct{}),
		seen:    make(map[int64]struct{}),
	}

	// Live messages buffer in the pubsub until Channel is called, so the
	// replay is delivered before any of them.
	if fromPosition >= 0 {
		if err := b.replay(ctx, s, fromPosition); err != nil {
			_ = ps.Close()
			return events.Subscription{}, &models.TransportError{Channel: channel, Err: err}
		}
	}

	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()

	go b.pump(s, ps.Channel())

	b.logger.Info("subscribed to redis channel", "channel", channel, "from", fromPosition)
	return events.Subscription{ID: s.id, Channel: channel}, nil
}

func (b *Bus) replay(ctx context.Context, s *subscriber, from int64) error {
	raw, err := b.rc.LRange(ctx, b.listKey(s.channel), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("read backlog: %w", err)
	}

	backlog := make([]events.Event, 0, len(raw))
	for _, item := range raw {
		var ev events.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			b.logger.Warn("skipping malformed backlog entry", "channel", s.channel, "error", err)
			continue
		}
		backlog = append(backlog, ev)
	}
	// Concurrent publishers may append out of sequence order
	slices.SortFunc(backlog, func(a, c events.Event) int {
		return cmp.Compare(a.SequenceID, c.SequenceID)
	})

	s.floor, s.high = from, from
	replayed := 0
	for _, ev := range backlog {
		if b.deliver(s, ev) {
			replayed++
		}
	}
	b.logger.Debug("replayed backlog", "channel", s.channel, "from", from, "count", replayed)
	return nil
}

func (b *Bus) pump(s *subscriber, ch <-chan *redis.Message) {
	defer close(s.done)
	for msg := range ch {
		var ev events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.reportError(&models.TransportError{Channel: s.channel, Err: fmt.Errorf("decode event: %w", err)})
			continue
		}
		b.deliver(s, ev)
	}
}

// deliver hands ev to the subscriber unless it was already seen.
func (b *Bus) deliver(s *subscriber, ev events.Event) bool {
	remote, ok := ev.RemoteEvent()
	if !ok {
		return false
	}
	if seq := ev.SequenceID; seq != 0 {
		if _, dup := s.seen[seq]; dup || seq <= s.floor {
			b.logger.Debug("dropping duplicate event", "channel", s.channel, "sequence", seq, "floor", s.floor)
			return false
		}
		b.markSeen(s, seq)
	}
	s.handler(remote)
	return true
}

// markSeen records seq and forgets sequences more than one backlog behind
// the newest, which can no longer arrive late.
func (b *Bus) markSeen(s *subscriber, seq int64) {
	s.seen[seq] = struct{}{}
	if seq <= s.high {
		return
	}
	s.high = seq
	if floor := s.high - b.backlog; floor > s.floor {
		s.floor = floor
		for n := range s.seen {
			if n <= floor {
				delete(s.seen, n)
			}
		}
	}
}

// Unsubscribe stops delivery for sub and waits for its handler to return.
func (b *Bus) Unsubscribe(sub events.Subscription) error {
	b.mu.Lock()
	s, ok := b.subs[sub.ID]
	delete(b.subs, sub.ID)
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown subscription %q", sub.ID)
	}
	err := s.ps.Close()
	<-s.done
	if err != nil {
		return fmt.Errorf("close subscription: %w", err)
	}
	return nil
}

// Close ends every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := b.Unsubscribe(events.Subscription{ID: id}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ events.Transport = (*Bus)(nil)
	_ events.Publisher = (*Bus)(nil)
)
