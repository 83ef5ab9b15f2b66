package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-grace/internal/observe"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics tracks connected clients on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithInbound sets a handler for text messages sent by clients.
func WithInbound(fn func(data []byte)) Option {
	return func(h *Hub) {
		h.onInbound = fn
	}
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name      string
	logger    *slog.Logger
	metrics   *observe.Metrics
	onInbound func(data []byte)

	clients map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	count   int
	running bool
}

// New creates a hub. Call Run to start it.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub", "hub", name)
	return h
}

// Run owns the client set until ctx is cancelled, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		for c := range h.clients {
			h.remove(c)
			h.setCount(context.Background(), -1)
		}
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount(ctx, 1)
			h.logger.Debug("client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.setCount(ctx, -1)
			}
			h.logger.Debug("client disconnected", "clients", len(h.clients))

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.remove(c)
					h.setCount(ctx, -1)
					h.logger.Warn("dropped slow client")
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) setCount(ctx context.Context, delta int) {
	h.mu.Lock()
	h.count += delta
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClients.Add(ctx, int64(delta))
	}
}

// Attach registers conn and serves it until it closes or the hub stops.
func (h *Hub) Attach(conn Conn) {
	c := &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.Run()
}

// Broadcast queues msg for every client. It drops the message when the
// queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastEvent encodes and broadcasts a typed event.
func (h *Hub) BroadcastEvent(typ string, data any) error {
	msg, err := EncodeEvent(typ, data)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// BroadcastBinary broadcasts raw bytes.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Name returns the hub name.
func (h *Hub) Name() string {
	return h.name
}
