// Package notify pushes events to users over websockets. A user may hold
// several connections; each gets every event published to that user.
package notify

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swipe-engine/internal/core/metrics"
)

const (
	EventReady        = "ready"
	EventMatchCreated = "match.created"

	writeWait = 10 * time.Second
)

var ErrClosed = errors.New("notify: hub closed")

type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

type Options struct {
	SendBuffer     int
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func (o *Options) normalize() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 16
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
}

type Hub struct {
	opts     Options
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

func NewHub(opts Options, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	opts.normalize()
	return &Hub{
		opts: opts,
		// 鉴权在 JWT 中间件完成，这里不再校验 Origin
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      log.Named("notify"),
		clients:  make(map[string]map[*client]struct{}),
	}
}

type client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

// Serve upgrades the request and returns once the connection is
// registered. Reading and writing continue on their own goroutines, so the
// request context may end without closing the socket.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan Event, h.opts.SendBuffer),
		done:   make(chan struct{}),
	}
	c.send <- Event{Type: EventReady, At: time.Now().UTC()}
	if err := h.add(c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return err
	}
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.NotifyConnections.Inc()
	h.log.Debug("client connected", zap.String("user", c.userID), zap.Int("conns", len(set)))
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	metrics.NotifyConnections.Dec()
	h.log.Debug("client disconnected", zap.String("user", c.userID))
}

// Publish queues ev for every connection of userID and returns how many
// took it. A connection whose buffer is full is dropped.
func (h *Hub) Publish(userID string, ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var slow []*client
	n := 0
	h.mu.RLock()
	for c := range h.clients[userID] {
		select {
		case c.send <- ev:
			n++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		metrics.NotifyDropped.Inc()
		h.log.Warn("dropping slow client", zap.String("user", userID), zap.String("event", ev.Type))
		c.close()
	}
	return n
}

// Connected counts open connections of userID.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects everyone and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.done)
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.log.Debug("write failed", zap.String("user", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// readPump only keeps the deadline fresh; clients have nothing to say.
func (c *client) readPump() {
	defer c.close()
	pongWait := c.hub.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("read failed", zap.String("user", c.userID), zap.Error(err))
			}
			return
		}
	}
}
