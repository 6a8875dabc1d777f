package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// client represents a connected client to the daemon
type client struct {
	conn         net.Conn
	send         chan events.Message
	subscription events.SubscribeMessage
	lastPong     time.Time
	mu           sync.Mutex // Protects subscription and lastPong
	closeOnce    sync.Once  // Ensures send channel is closed only once
}

func (c *client) subscribedTo(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscription.Channel != "" && c.subscription.Channel == channel
}

// Options tunes the daemon. Zero values fall back to defaults.
type Options struct {
	BroadcastBuffer int
	ClientBuffer    int
	ReplaySize      int
	PingInterval    time.Duration
	StaleAfter      time.Duration
	Logger          *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.BroadcastBuffer <= 0 {
		o.BroadcastBuffer = getEnvInt("LIVEKANBAN_DAEMON_BROADCAST_BUFFER", 100)
	}
	if o.ClientBuffer <= 0 {
		o.ClientBuffer = getEnvInt("LIVEKANBAN_DAEMON_CLIENT_BUFFER", 32)
	}
	if o.ReplaySize <= 0 {
		o.ReplaySize = getEnvInt("LIVEKANBAN_DAEMON_REPLAY_SIZE", 256)
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 3 * o.PingInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Server is the hub daemon. It relays remote events between clients on the
// same machine, per channel.
type Server struct {
	socketPath      string
	listener        net.Listener
	clients         map[*client]bool
	mu              sync.RWMutex
	ctx             context.Context
	cancel          context.CancelFunc
	broadcast       chan events.Event
	metrics         *Metrics
	sequenceCounter atomic.Int64
	epoch           string
	backlog         *backlog
	opts            Options
	logger          *slog.Logger
	shutdownOnce    sync.Once
}

// getEnvInt reads an integer from an environment variable, returning defaultVal if not set or invalid
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

// NewServer creates a new daemon server listening on socketPath.
func NewServer(socketPath string, opts Options) (*Server, error) {
	opts.applyDefaults()

	dir := filepath.Dir(socketPath)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create socket directory: %w", err)
		}
	}

	// Remove stale socket file if it exists
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		socketPath: socketPath,
		listener:   listener,
		clients:    make(map[*client]bool),
		ctx:        ctx,
		cancel:     cancel,
		broadcast:  make(chan events.Event, opts.BroadcastBuffer),
		metrics:    NewMetrics(),
		backlog:    newBacklog(opts.ReplaySize),
		epoch:      uuid.NewString(),
		opts:       opts,
		logger:     opts.Logger,
	}, nil
}

// Epoch identifies this hub run. Sequence numbers are only comparable
// within one epoch.
func (s *Server) Epoch() string {
	return s.epoch
}

// Metrics returns the live counters of the server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start runs the daemon until ctx is cancelled or the listener fails.
// It starts three goroutines: accept, broadcast and health monitoring.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("daemon starting", "socket", s.socketPath)

	combinedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(combinedCtx)
	}()

	go s.broadcastLoop(combinedCtx)
	go s.monitorHealth(combinedCtx)

	var runErr error
	select {
	case <-combinedCtx.Done():
		s.logger.Info("daemon context cancelled, shutting down")
	case err := <-acceptErr:
		if err != nil {
			s.logger.Error("accept loop error", "error", err)
			runErr = err
		}
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return runErr
}

// acceptLoop accepts incoming client connections
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Deadline so we can check for context cancellation
		if ul, ok := s.listener.(*net.UnixListener); ok {
			if err := ul.SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
				s.logger.Debug("error setting listener deadline", "error", err)
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}

		c := &client{
			conn:     conn,
			send:     make(chan events.Message, s.opts.ClientBuffer),
			lastPong: time.Now(),
		}

		s.mu.Lock()
		s.clients[c] = true
		s.mu.Unlock()

		s.updateClientCount()
		s.logger.Debug("client connected", "clients", s.getClientCount())

		go s.handleClient(c)
		go s.clientWriter(c)
	}
}

// broadcastLoop stamps events with a sequence number, records them for
// replay and distributes them to subscribed clients.
func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.broadcast:
			if !ok {
				return
			}
			s.fanOut(event)
		}
	}
}

func (s *Server) fanOut(event events.Event) {
	// Write lock: subscribe replays the backlog under the same lock, so a
	// client sees each event either from the backlog or live.
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SequenceID = s.sequenceCounter.Add(1)
	event.Epoch = s.epoch
	s.backlog.add(event)

	msg := events.Message{
		Version: events.ProtocolVersion,
		Type:    events.MsgEvent,
		Event:   &event,
	}

	for c := range s.clients {
		if !c.subscribedTo(event.Channel) {
			continue
		}
		// Non-blocking send - slow clients miss live events and catch up
		// from the backlog when they resubscribe
		if !s.sendToClient(c, msg) {
			s.metrics.IncEventsDropped()
			s.logger.Warn("client send queue full, event dropped", "channel", event.Channel, "sequence", event.SequenceID)
		}
	}
}

// subscribe switches the client to a channel and replays the backlog after
// the requested position.
func (s *Server) subscribe(c *client, sub events.SubscribeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()

	s.logger.Debug("client subscribed", "channel", sub.Channel, "from_sequence", sub.FromSequence)

	if sub.FromSequence < 0 {
		return
	}
	from := sub.FromSequence
	if sub.Epoch != "" && sub.Epoch != s.epoch {
		// Position from an earlier hub run; everything retained here is new
		// to the client.
		s.logger.Info("client resumed from another hub run, replaying full backlog",
			"channel", sub.Channel, "from_sequence", sub.FromSequence)
		from = 0
	}
	for _, ev := range s.backlog.since(sub.Channel, from) {
		msg := events.Message{Version: events.ProtocolVersion, Type: events.MsgEvent, Event: &ev}
		if !s.sendToClient(c, msg) {
			s.metrics.IncEventsDropped()
			break
		}
		s.metrics.IncEventsReplayed()
	}
}

// handleClient reads messages from a connected client
func (s *Server) handleClient(c *client) {
	defer func() {
		s.removeClient(c)
		s.logger.Debug("client disconnected", "clients", s.getClientCount())
	}()

	decoder := json.NewDecoder(c.conn)

	for {
		var msg events.Message

		if err := decoder.Decode(&msg); err != nil {
			return
		}

		if msg.Version != 0 && msg.Version != events.ProtocolVersion {
			s.logger.Warn("protocol version mismatch", "got", msg.Version, "want", events.ProtocolVersion)
		}

		switch msg.Type {
		case events.MsgEvent:
			if msg.Event != nil && msg.Event.Type == events.EventTaskChanged {
				s.metrics.IncEventsReceived()
				if err := s.Broadcast(*msg.Event); err != nil {
					s.logger.Warn("dropping event from client", "error", err)
				}
			}

		case events.MsgSubscribe:
			if msg.Subscribe != nil {
				s.subscribe(c, *msg.Subscribe)
			}

		case events.MsgPong:
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
		}
	}
}

// clientWriter sends messages to a client
func (s *Server) clientWriter(c *client) {
	encoder := json.NewEncoder(c.conn)

	for msg := range c.send {
		if err := encoder.Encode(msg); err != nil {
			return
		}
	}
}

// monitorHealth sends ping messages and removes stale clients
func (s *Server) monitorHealth(ctx context.Context) {
	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			s.mu.RLock()
			clients := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.RUnlock()

			pingMsg := events.Message{
				Version: events.ProtocolVersion,
				Type:    events.MsgPing,
			}

			now := time.Now()
			for _, c := range clients {
				c.mu.Lock()
				silent := now.Sub(c.lastPong)
				c.mu.Unlock()

				if silent > s.opts.StaleAfter {
					s.logger.Info("removing stale client", "last_pong_ago", silent)
					s.removeClient(c)
					continue
				}
				if !s.sendToClient(c, pingMsg) {
					s.logger.Debug("failed to send ping to client (queue full)")
				}
			}
		}
	}
}

// Broadcast queues an event for distribution (non-blocking).
func (s *Server) Broadcast(event events.Event) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("daemon shut down")
	}
	select {
	case s.broadcast <- event:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// Publish lets in-process writers publish without a socket round trip.
func (s *Server) Publish(_ context.Context, channel string, event models.RemoteEvent) error {
	return s.Broadcast(events.NewEvent(channel, event))
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down daemon")

		s.cancel()

		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("error closing listener", "error", err)
			}
		}

		s.mu.Lock()
		for c := range s.clients {
			_ = c.conn.Close()
			c.closeOnce.Do(func() {
				close(c.send)
			})
		}
		s.clients = make(map[*client]bool)
		s.mu.Unlock()
		s.updateClientCount()

		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove socket file", "error", err)
		}
	})

	return nil
}

// Helper methods

func (s *Server) getClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) updateClientCount() {
	s.metrics.SetConnectedClients(int32(s.getClientCount()))
}

// removeClient safely removes a client from the server
func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	_ = c.conn.Close()
	c.closeOnce.Do(func() {
		close(c.send)
	})

	s.updateClientCount()
}

// sendToClient attempts to send a message to a client (non-blocking)
// Returns true if successful, false if the queue is full or closed
func (s *Server) sendToClient(c *client, msg events.Message) (sent bool) {
	// Sending on a channel closed by removeClient panics; treat as dropped
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- msg:
		s.metrics.IncEventsSent()
		return true
	default:
		return false
	}
}
