//go:build !no_web

package web

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/store"
)

// WSHub manages WebSocket connections and broadcasts events.
type WSHub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan hubMessage

	done     chan struct{}
	stopOnce sync.Once
}

type hubMessage struct {
	ieee string // empty for messages not tied to a device
	msg  any
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	ieee string // only forward this device's events when set
}

func (c *wsClient) wants(ieee string) bool {
	return c.ieee == "" || ieee == "" || c.ieee == ieee
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan hubMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			// Close all remaining clients on shutdown
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", "total", total, "ieee", client.ieee)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", "total", total)

		case m := <-h.broadcast:
			data, err := json.Marshal(m.msg)
			if err != nil {
				h.logger.Error("ws marshal", "err", err)
				continue
			}
			h.mu.Lock()
			var slow []*wsClient
			for client := range h.clients {
				if !client.wants(m.ieee) {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client too slow, mark for eviction
					slow = append(slow, client)
				}
			}
			for _, client := range slow {
				delete(h.clients, client)
				close(client.send)
				h.logger.Warn("ws client evicted (too slow)")
			}
			h.mu.Unlock()
		}
	}
}

// Stop signals the hub to shut down. Safe to call multiple times.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues msg for every client interested in ieee. An empty ieee
// reaches all clients. Messages are dropped when the queue is full.
func (h *WSHub) Broadcast(ieee string, msg any) {
	select {
	case h.broadcast <- hubMessage{ieee: ieee, msg: msg}:
	default:
		h.logger.Warn("ws broadcast channel full, dropping message")
	}
}

func (h *WSHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// eventIEEE returns the device an event belongs to.
func eventIEEE(e coordinator.Event) string {
	switch d := e.Data.(type) {
	case coordinator.AttributeChange:
		return d.IEEE
	case coordinator.WriteSent:
		return d.IEEE
	case *store.Device:
		return d.IEEEAddress
	}
	return ""
}

// wireEvent renders byte values as hex so octet strings read the same on
// the stream as in the REST API.
func wireEvent(e coordinator.Event) coordinator.Event {
	if ch, ok := e.Data.(coordinator.AttributeChange); ok {
		if b, ok := ch.Value.([]byte); ok {
			ch.Value = hex.EncodeToString(b)
			e.Data = ch
		}
	}
	return e
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var ieee string
	if q := r.URL.Query().Get("ieee"); q != "" {
		norm, err := coordinator.NormalizeIEEE(q)
		if err != nil {
			http.Error(w, "invalid ieee address", http.StatusBadRequest)
			return
		}
		ieee = norm
	}

	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	// If no allowedOrigins configured, nhooyr defaults to same-origin check.

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}

	conn.SetReadLimit(4096)

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		ieee: ieee,
	}

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

func (s *Server) wsWritePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	// Channel closed by hub; close connection.
	client.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		select {
		case s.wsHub.unregister <- client:
		case <-s.wsHub.done:
			// Hub already shut down; close connection directly.
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel read context when hub shuts down.
	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		// Clients only listen; anything they send is discarded.
		if _, _, err := client.conn.Read(ctx); err != nil {
			return
		}
	}
}
