package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// ErrQueueFull is returned by Publish when the outbound queue is saturated.
var ErrQueueFull = errors.New("event queue full")

// Client represents a connection to the hub daemon.
// It handles publishing, receiving, reconnection and the channel subscription.
type Client struct {
	socketPath string
	conn       net.Conn
	encoder    *json.Encoder
	decoder    *json.Decoder
	mu         sync.Mutex
	logger     *slog.Logger

	outbox     chan Event
	closed     bool
	writerOnce sync.Once
	writerDone chan struct{}

	// Reconnection configuration
	maxRetries int
	baseDelay  time.Duration

	// Subscription state
	channel      string
	fromSequence int64

	// Highest hub sequence delivered; older or repeated events are dropped.
	// Sequences restart with every hub run, identified by epoch.
	lastSequence int64
	epoch        string

	onDisconnect func(error)

	ctx    context.Context
	cancel context.CancelFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger used by the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRetryPolicy sets how often and how fast the client reconnects.
func WithRetryPolicy(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// WithDisconnectHandler is called once the client gives up reconnecting.
func WithDisconnectHandler(fn func(error)) ClientOption {
	return func(c *Client) { c.onDisconnect = fn }
}

// NewClient creates a new hub client but does not connect.
// The socket path should be the full path to the Unix domain socket.
func NewClient(socketPath string, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		socketPath:   socketPath,
		logger:       slog.Default(),
		outbox:       make(chan Event, 100),
		writerDone:   make(chan struct{}),
		maxRetries:   5,
		baseDelay:    1 * time.Second,
		fromSequence: FromLatest,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a connection to the daemon socket and sends the
// current subscription, if any.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client closed")
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to dial daemon socket: %w", ClassifyDaemonError(err))
	}

	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)

	if c.channel != "" {
		if err := c.encoder.Encode(c.subscribeMessage()); err != nil {
			if closeErr := conn.Close(); closeErr != nil {
				c.logger.Debug("error closing connection", "error", closeErr)
			}
			c.conn = nil
			return fmt.Errorf("failed to send subscription: %w", err)
		}
	}

	c.writerOnce.Do(func() { go c.runWriter() })
	return nil
}

// subscribeMessage resumes after the last delivered event when reconnecting.
// Caller holds c.mu.
func (c *Client) subscribeMessage() Message {
	from := c.fromSequence
	if c.lastSequence > 0 {
		from = c.lastSequence
	}
	return Message{
		Version: ProtocolVersion,
		Type:    MsgSubscribe,
		Subscribe: &SubscribeMessage{
			Channel:      c.channel,
			FromSequence: from,
			Epoch:        c.epoch,
		},
	}
}

// Publish queues an event for the hub. It never blocks; a saturated queue
// returns ErrQueueFull.
func (c *Client) Publish(ctx context.Context, channel string, event models.RemoteEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client closed")
	}

	select {
	case c.outbox <- NewEvent(channel, event):
		return nil
	default:
		return ErrQueueFull
	}
}

// runWriter drains the outbox until Close.
func (c *Client) runWriter() {
	defer close(c.writerDone)

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			return
		case event, ok := <-c.outbox:
			if !ok {
				return
			}
			c.write(event)
		}
	}
}

// flush sends whatever is still queued at shutdown.
func (c *Client) flush() {
	for {
		select {
		case event, ok := <-c.outbox:
			if !ok {
				return
			}
			c.write(event)
		default:
			return
		}
	}
}

func (c *Client) write(event Event) {
	err := c.send(Message{Version: ProtocolVersion, Type: MsgEvent, Event: &event})
	if err != nil && !isConnectionError(err) {
		c.logger.Warn("failed to send event", "channel", event.Channel, "error", err)
	}
}

// send writes one message to the daemon socket.
func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected to daemon")
	}

	// Short write deadline to detect dead connections
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	return c.encoder.Encode(msg)
}

// Listen starts listening for events from the daemon.
// The returned channel is closed when ctx is done or reconnection fails.
func (c *Client) Listen(ctx context.Context) (<-chan Event, error) {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("not connected to daemon")
	}

	eventChan := make(chan Event, 10)
	go c.listenLoop(ctx, eventChan)
	return eventChan, nil
}

// listenLoop reads events from the daemon and handles reconnection.
func (c *Client) listenLoop(ctx context.Context, eventChan chan Event) {
	defer close(eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		default:
		}

		err := c.readEvents(ctx, eventChan)
		if err == nil || ctx.Err() != nil || c.ctx.Err() != nil {
			return
		}

		c.logger.Warn("connection to hub lost, reconnecting", "error", err)
		if c.reconnect(ctx) {
			c.logger.Info("reconnected to hub")
			continue
		}

		c.logger.Error("failed to reconnect to hub, giving up", "attempts", c.maxRetries)
		if c.onDisconnect != nil {
			c.onDisconnect(fmt.Errorf("reconnect failed after %d attempts: %w", c.maxRetries, err))
		}
		return
	}
}

// readEvents reads messages from the socket and forwards events.
func (c *Client) readEvents(ctx context.Context, eventChan chan Event) error {
	for {
		var msg Message

		c.mu.Lock()
		if c.conn == nil {
			c.mu.Unlock()
			return fmt.Errorf("connection closed")
		}
		// Hung connection detection; the hub pings every 30s
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		decoder := c.decoder
		c.mu.Unlock()

		if err := decoder.Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}

		if msg.Version != 0 && msg.Version != ProtocolVersion {
			c.logger.Warn("protocol version mismatch", "got", msg.Version, "want", ProtocolVersion)
		}

		switch msg.Type {
		case MsgEvent:
			if msg.Event == nil || !c.accept(msg.Event.Epoch, msg.Event.SequenceID) {
				continue
			}
			select {
			case eventChan <- *msg.Event:
			case <-ctx.Done():
				return nil
			}

		case MsgPing:
			if err := c.send(Message{Version: ProtocolVersion, Type: MsgPong}); err != nil {
				if !isConnectionError(err) {
					c.logger.Warn("failed to send pong", "error", err)
				}
			}
		}
	}
}

// accept reports whether seq is newer than anything delivered so far.
// Unsequenced events are always delivered. An event from a new hub epoch
// restarts the sequence.
func (c *Client) accept(epoch string, seq int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq == 0 {
		return true
	}
	if epoch != "" && epoch != c.epoch {
		if c.epoch != "" {
			c.logger.Warn("hub restarted, sequence numbers reset",
				"channel", c.channel, "last_sequence", c.lastSequence, "sequence", seq)
		}
		c.epoch = epoch
		c.lastSequence = 0
	}
	if seq <= c.lastSequence {
		return false
	}
	c.lastSequence = seq
	return true
}

// LastSequence returns the highest hub sequence delivered.
func (c *Client) LastSequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSequence
}

// isConnectionError checks if an error is a network connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	return errors.Is(err, net.ErrClosed) || errors.As(err, &opErr)
}

// reconnect attempts to reconnect to the daemon with exponential backoff.
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.baseDelay

	for i := 0; i < c.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-c.ctx.Done():
			return false
		case <-time.After(delay):
			c.mu.Lock()
			if c.conn != nil {
				if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
					c.logger.Debug("error closing connection during reconnect", "error", err)
				}
				c.conn = nil
			}
			c.mu.Unlock()

			if err := c.Connect(ctx); err == nil {
				c.logger.Info("reconnected to hub", "attempt", i+1, "max_retries", c.maxRetries)
				return true
			}

			c.logger.Debug("reconnection attempt failed", "attempt", i+1, "max_retries", c.maxRetries, "retry_delay", delay)
			delay *= 2
		}
	}

	return false
}

// Subscribe selects the channel to receive. When not yet connected the
// subscription is sent by Connect.
func (c *Client) Subscribe(channel string, fromSequence int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.channel = channel
	c.fromSequence = fromSequence
	if fromSequence >= 0 {
		c.lastSequence = fromSequence
	}

	if c.conn == nil {
		return nil
	}
	return c.encoder.Encode(c.subscribeMessage())
}

// Close closes the connection to the daemon and stops all goroutines.
// Queued events are flushed first.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	// Only wait for the writer if one was started
	started := true
	c.writerOnce.Do(func() {
		started = false
		close(c.writerDone)
	})
	if started {
		<-c.writerDone
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
	return nil
}
