// Package dashboard pushes sync progress and event changes to admin browsers
// over websockets.
//
// The Hub is an http.Handler mounted by the admin API. Every message is
// fanned out to all connected clients from a single broadcast goroutine, so
// a slow client delays the others by at most the write timeout before it is
// dropped.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypeHello is sent once to each client after it connects.
	MessageTypeHello MessageType = "hello"

	// MessageTypeSyncPreview indicates a sync preview pass completed.
	MessageTypeSyncPreview MessageType = "sync_preview"

	// MessageTypeSyncApplied indicates a batch of resolutions was applied.
	MessageTypeSyncApplied MessageType = "sync_applied"

	// MessageTypeEventUpdate indicates an admin changed a stored event.
	MessageTypeEventUpdate MessageType = "event_update"

	// MessageTypeStats carries calendar totals after a write.
	MessageTypeStats MessageType = "stats"
)

const writeTimeout = 5 * time.Second

// Message represents a dashboard broadcast message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// HelloData is the payload of the hello message.
type HelloData struct {
	Clients int `json:"clients"`
}

// Config holds hub configuration.
type Config struct {
	// Logger for hub activity (default: no-op).
	Logger *zap.Logger

	// OriginPatterns lists extra hosts allowed to open a websocket from a
	// browser page on another origin. Same-origin requests are always
	// accepted.
	OriginPatterns []string

	// BufferSize is the broadcast queue length (default: 100).
	BufferSize int
}

// Hub manages websocket connections and broadcasts dashboard messages.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	origins []string
	logger  *zap.Logger
}

// NewHub creates a hub. Call Start before serving clients.
func NewHub(config Config) *Hub {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	size := config.BufferSize
	if size <= 0 {
		size = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, size),
		ctx:       ctx,
		cancel:    cancel,
		origins:   config.OriginPatterns,
		logger:    logger,
	}
}

// Start launches the broadcast loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop disconnects every client and waits for the broadcast loop to exit.
// Queued messages that were not yet sent are dropped.
func (h *Hub) Stop() {
	h.cancel()
	h.wg.Wait()

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.CloseNow()
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	h.logger.Info("dashboard hub stopped")
}

// Broadcast queues a message for all connected clients. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.ctx.Done():
		return
	default:
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

// Publish marshals data and broadcasts it as a message of the given type.
func (h *Hub) Publish(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal dashboard message", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	h.Broadcast(Message{Type: typ, Timestamp: time.Now().UTC(), Data: raw})
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg := <-h.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to marshal message", zap.Error(err))
				continue
			}

			h.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				clients = append(clients, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					h.logger.Debug("failed to send to client", zap.Error(err))
					h.removeClient(conn)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request to a websocket and holds it open until the
// client disconnects or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "dashboard stopped", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Info("client connected", zap.Int("clients", count))

	hello, _ := json.Marshal(Message{
		Type:      MessageTypeHello,
		Timestamp: time.Now().UTC(),
		Data:      mustJSON(HelloData{Clients: count}),
	})
	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	err = conn.Write(ctx, websocket.MessageText, hello)
	cancel()
	if err != nil {
		h.removeClient(conn)
		return
	}

	h.readLoop(conn)
}

// readLoop drains client frames so pings and close frames are handled.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.clientsMu.Unlock()

	_ = conn.CloseNow()
	h.logger.Info("client disconnected", zap.Int("clients", count))
}

// ClientCount returns the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
