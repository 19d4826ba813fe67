package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"crashcore/internal/engine"
)

// Message is one outbound wire-protocol frame, per spec.md §6.1:
// {"event": "...", "payload": {...}}. Replaces the teacher's ad hoc
// {"type": ..., "data": ...} shape with the spec's named events.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// wsConn is the slice of *websocket.Conn the hub needs; narrowing it
// to an interface lets tests exercise Client.send with a fake
// connection instead of a live socket.
type wsConn interface {
	SetWriteDeadline(time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// Client is one connected WebSocket session. Grounded on the
// teacher's game.Client (internal/game/hub.go): a conn pointer plus a
// write mutex, since websocket.Conn is not safe for concurrent writes.
type Client struct {
	conn   wsConn
	connID string
	userID string
	mu     sync.Mutex
}

func (c *Client) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub is the connected-users registry and broadcast fan-out, grounded
// on the teacher's game.Hub. register/unregister/broadcast all flow
// through Hub.Run's single goroutine, so the clients map is never
// touched outside it (spec.md §5 "connected-users map is guarded;
// iteration for broadcast takes a snapshot").
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	direct     chan directMessage
	countReq   chan chan int
	log        *zap.Logger
}

type directMessage struct {
	connID string
	msg    Message
}

// NewHub builds a Hub. Call Run in its own goroutine before accepting
// connections.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		direct:     make(chan directMessage, 256),
		countReq:   make(chan chan int),
		log:        log,
	}
}

// Run drives the hub's single-owner loop. Call once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c.connID] = c
			h.log.Info("client connected", zap.String("conn_id", c.connID), zap.String("user_id", c.userID), zap.Int("total", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c.connID]; ok {
				delete(h.clients, c.connID)
				h.log.Info("client disconnected", zap.String("conn_id", c.connID), zap.String("user_id", c.userID), zap.Int("total", len(h.clients)))
			}

		case msg := <-h.broadcast:
			// Snapshot the recipient list before fanning out, so a
			// concurrent register/unregister never races the send loop.
			targets := make([]*Client, 0, len(h.clients))
			for _, c := range h.clients {
				targets = append(targets, c)
			}
			for _, c := range targets {
				go c.send(msg)
			}

		case dm := <-h.direct:
			if c, ok := h.clients[dm.connID]; ok {
				go c.send(dm.msg)
			}

		case resp := <-h.countReq:
			resp <- len(h.clients)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(conn *websocket.Conn, connID, userID string) *Client {
	c := &Client{conn: conn, connID: connID, userID: userID}
	h.register <- c
	return c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast fans a message out to every connected client.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast channel full, dropping message", zap.String("event", msg.Event))
	}
}

// SendTo delivers msg to exactly one connection, for originator-only
// outbound events (game_state, game_history, error — spec.md §6.1).
func (h *Hub) SendTo(connID string, msg Message) {
	select {
	case h.direct <- directMessage{connID: connID, msg: msg}:
	default:
		h.log.Warn("direct channel full, dropping message", zap.String("event", msg.Event), zap.String("conn_id", connID))
	}
}

// ClientCount reports the number of connected clients, for /health.
// Routed through the owner goroutine (like register/unregister/broadcast)
// rather than read directly, since the clients map is never touched
// outside Run.
func (h *Hub) ClientCount() int {
	resp := make(chan int, 1)
	h.countReq <- resp
	return <-resp
}

// Emit implements engine.EventSink: every engine event is translated
// into a broadcast wire Message, per spec.md §6.1's outbound table.
// The engine holds no reference back to Hub — this is the one
// concrete sink wired in at composition time (spec.md §9 "avoid the
// back-reference pattern").
func (h *Hub) Emit(ev engine.Event) {
	h.Broadcast(Message{Event: string(ev.Type), Payload: ev.Payload})
}
