// Package ws streams frames and summaries to browser clients over
// websockets and accepts picks from them.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/impact-simulator/internal/display"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/sim/bus"
	"github.com/signalsfoundry/impact-simulator/internal/sim/state"
	"github.com/signalsfoundry/impact-simulator/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Message types exchanged with clients.
const (
	TypeFrame   = "frame"
	TypeSummary = "summary"
	TypePick    = "pick"
	TypeError   = "error"
)

// Message is the envelope for every websocket message.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Picker starts an impact; the animation coordinator satisfies it.
type Picker interface {
	Pick(ctx context.Context, point model.GeoPoint) (state.Impact, error)
}

// Client is one connected browser.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string
	send chan []byte
}

// Hub maintains the set of active clients. It subscribes to the frame bus
// and acts as a display panel, relaying both to every client.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	lastSummary []byte

	upgrader websocket.Upgrader
	picker   Picker
	log      logging.Logger
}

// NewHub creates a hub. picker may be nil, in which case pick messages are
// rejected.
func NewHub(picker Picker, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		picker: picker,
		log:    log.With(logging.String("component", "ws")),
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleFrame implements bus.Subscriber.
func (h *Hub) HandleFrame(ctx context.Context, f bus.Frame) {
	data, err := encode(TypeFrame, f)
	if err != nil {
		h.log.Error(ctx, "marshal frame", logging.Err(err))
		return
	}
	h.broadcast(ctx, data)
}

// ShowSummary implements present.DisplayPanel. The latest summary is also
// sent to clients as they connect.
func (h *Hub) ShowSummary(s display.Summary) {
	data, err := encode(TypeSummary, s)
	if err != nil {
		h.log.Error(context.Background(), "marshal summary", logging.Err(err))
		return
	}
	h.mu.Lock()
	h.lastSummary = data
	h.mu.Unlock()
	h.broadcast(context.Background(), data)
}

func (h *Hub) broadcast(ctx context.Context, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn(ctx, "client send buffer full, dropping message", logging.String("client", c.id))
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &Client{
		hub:  h,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.lastSummary != nil {
		c.send <- h.lastSummary
	}
	h.mu.Unlock()

	h.log.Info(r.Context(), "client connected", logging.String("client", c.id))

	go c.writePump()
	go c.readPump()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("malformed message")
		return
	}

	switch msg.Type {
	case TypePick:
		if h.picker == nil {
			c.sendError("picks are not accepted on this connection")
			return
		}
		var p model.GeoPoint
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.sendError("malformed pick")
			return
		}
		if _, err := h.picker.Pick(ctx, p); err != nil {
			c.sendError(err.Error())
		}
	default:
		c.sendError("unknown message type " + msg.Type)
	}
}

// readPump reads client messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.log.Info(context.Background(), "client disconnected", logging.String("client", c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn(context.Background(), "websocket read error", logging.String("client", c.id), logging.Err(err))
			}
			return
		}
		c.hub.handleMessage(context.Background(), c, raw)
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.Warn(context.Background(), "websocket write error", logging.String("client", c.id), logging.Err(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError queues an error for the client, dropping it if the buffer is full.
func (c *Client) sendError(message string) {
	data, err := encode(TypeError, map[string]string{"message": message})
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

func encode(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Data: data})
}
