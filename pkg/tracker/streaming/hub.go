// Package streaming pushes change events to WebSocket clients.
package streaming

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/notify"
)

// EventType labels a streamed frame.
type EventType string

const (
	EventTypeChange    EventType = "change"
	EventTypeStatus    EventType = "status"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	readLimit    = 4096
)

// Event is one frame sent to clients. Wallet is set for wallet-scoped events
// and drives per-client wallet filters.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Wallet    string    `json:"wallet,omitempty"`
	Data      any       `json:"data"`
}

// Hub fans events out to connected clients.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	heartbeat time.Duration
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// Client is one WebSocket connection.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	ready chan struct{}

	subMu   sync.RWMutex
	types   map[EventType]bool
	wallets map[string]bool
}

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithHeartbeat sets the heartbeat period. Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) { h.heartbeat = d }
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		heartbeat:  30 * time.Second,
		logger:     zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run drives the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.heartbeat > 0 {
		t := time.NewTicker(h.heartbeat)
		defer t.Stop()
		tick = t.C
	}
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			close(c.ready)
			h.logger.Debug("ws client connected", zap.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", zap.Int("clients", n))

		case ev := <-h.broadcast:
			h.fanout(ev)

		case now := <-tick:
			h.fanout(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: now,
				Data:      map[string]int{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

func (h *Hub) fanout(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("ws marshal failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// slow consumer
			close(c.send)
			delete(h.clients, c)
			h.logger.Warn("ws client dropped, send buffer full")
		}
	}
}

// Broadcast queues an event for every interested client.
func (h *Hub) Broadcast(ev Event) bool {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- ev:
		return true
	default:
		h.logger.Warn("ws broadcast queue full, dropping event", zap.String("type", string(ev.Type)))
		return false
	}
}

// BroadcastStatus sends a status frame.
func (h *Hub) BroadcastStatus(status any) {
	h.Broadcast(Event{Type: EventTypeStatus, Data: status})
}

// BroadcastError sends an error frame, optionally scoped to a wallet.
func (h *Hub) BroadcastError(wallet string, err error) {
	h.Broadcast(Event{
		Type:   EventTypeError,
		Wallet: wallet,
		Data:   map[string]string{"error": err.Error()},
	})
}

// Notify streams a delivery as a change frame.
func (h *Hub) Notify(_ context.Context, d notify.Delivery) error {
	h.Broadcast(Event{
		Type:      EventTypeChange,
		Timestamp: d.Event.Timestamp,
		Wallet:    d.Event.Wallet,
		Data:      d,
	})
	return nil
}

var _ notify.Notifier = (*Hub)(nil)

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches a client. Clients receive every
// event type and every wallet until they send a subscribe message.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		ready:   make(chan struct{}),
		types:   make(map[EventType]bool),
		wallets: make(map[string]bool),
	}
	for _, w := range strings.Split(r.URL.Query().Get("wallets"), ",") {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			c.wallets[w] = true
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	select {
	case <-c.ready:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// wants applies the type and wallet filters. Empty filters match everything;
// events without a wallet pass any wallet filter.
func (c *Client) wants(ev Event) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.types) > 0 && !c.types[ev.Type] && ev.Type != EventTypeHeartbeat {
		return false
	}
	if len(c.wallets) > 0 && ev.Wallet != "" && !c.wallets[strings.ToLower(ev.Wallet)] {
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		c.handleMessage(msg)
	}
}

type controlMessage struct {
	Type    string   `json:"type"`
	Events  []string `json:"events"`
	Wallets []string `json:"wallets"`
}

func (c *Client) handleMessage(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	c.subMu.Lock()
	switch msg.Type {
	case "subscribe":
		for _, e := range msg.Events {
			c.types[EventType(e)] = true
		}
		for _, w := range msg.Wallets {
			c.wallets[strings.ToLower(w)] = true
		}
	case "unsubscribe":
		for _, e := range msg.Events {
			delete(c.types, EventType(e))
		}
		for _, w := range msg.Wallets {
			delete(c.wallets, strings.ToLower(w))
		}
	default:
		c.subMu.Unlock()
		return
	}
	ack := Event{
		Type:      EventTypeStatus,
		Timestamp: time.Now(),
		Data: map[string]any{
			"ack":     msg.Type,
			"events":  len(c.types),
			"wallets": len(c.wallets),
		},
	}
	c.subMu.Unlock()

	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump sends one frame per queued event and pings on idle.
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
