package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Event tells connected clients that cached data under Prefix changed and
// should be re-read.
type Event struct {
	Type   string    `json:"type"`
	Prefix string    `json:"prefix"`
	Reason string    `json:"reason"`
	TaskID string    `json:"task_id,omitempty"`
	At     time.Time `json:"at"`
}

const EventInvalidate = "invalidate"

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans events out to every connected websocket client. A client whose
// buffer is full is dropped rather than slowing the publisher down.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS в app тоже открыт для всех
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWS upgrades the request and keeps the connection registered until the
// peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, send: make(chan Event, sendBuffer)}
	h.register(c)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()
	h.readPump(c)
	return nil
}

// Publish delivers ev to every client without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("[ws][publish][drop] slow client")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their writers to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("[ws][connect]", zap.Int("clients", n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("[ws][disconnect]", zap.Int("clients", n))
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump discards inbound messages; it exists to process control frames
// and notice disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.logger.Debug("[ws][write][err]", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
