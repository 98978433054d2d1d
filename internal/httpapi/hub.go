package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
)

// EventSource hands out event streams.
type EventSource interface {
	Subscribe(buffer int) (<-chan domain.Event, func())
}

// Frame is the JSON shape of one websocket message.
type Frame struct {
	Type string       `json:"type"`
	Data domain.Event `json:"data"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts session events to websocket clients. A client that cannot
// keep up is disconnected.
type Hub struct {
	events   EventSource
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[string]*wsClient
}

// NewHub constructs a Hub over events.
func NewHub(events EventSource, log *logrus.Entry) *Hub {
	return &Hub{
		events: events,
		upgrader: websocket.Upgrader{
			// Access is already restricted by the HTTP middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[string]*wsClient),
	}
}

// Run broadcasts events until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	ch, cancel := h.events.Subscribe(0)
	defer cancel()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"client": c.id, "clients": count}).Info("Client connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) broadcast(ev domain.Event) {
	data, err := json.Marshal(Frame{Type: ev.EventName(), Data: ev})
	if err != nil {
		h.log.WithError(err).Error("Encoding event failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("client", id).Warn("Client too slow, disconnecting")
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.WithField("client", c.id).WithError(err).Debug("Websocket read ended")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithField("client", c.id).WithError(err).Debug("Websocket write failed")
			h.remove(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		close(c.send)
		h.log.WithFields(logrus.Fields{"client": c.id, "clients": len(h.clients)}).Info("Client disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
