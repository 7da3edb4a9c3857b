// Package notify is a small local websocket broadcaster for settlement
// state transitions. It never crosses the Ark-server wire boundary: its
// only producer is a settlement.Engine running in this same process, and
// its only consumers are local tooling (a CLI progress bar, a browser tab)
// watching that one wallet instance settle.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arkwallet/arkwalletd/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventType identifies the kind of payload carried by an Event.
type EventType string

// The settlement lifecycle events a Hub broadcasts, one per
// settlement.State the engine can reach.
const (
	EventRegistering EventType = "registering"
	EventNonces      EventType = "nonces"
	EventSignatures  EventType = "signatures"
	EventForfeiting  EventType = "forfeiting"
	EventDone        EventType = "done"
	EventFatal       EventType = "fatal"
)

// Event is one broadcast message. ID lets a subscriber dedupe a message it
// may have received twice across a reconnect, the way the teacher tags
// queued P2P messages with a uuid for the same reason.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Client is one connected websocket subscriber.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans a single settlement's state transitions out to every connected
// Client, the way the teacher's rpc.WSHub fans P2P/peer events out to
// dashboard clients, minus per-client event-type subscriptions: a
// settlement has one event stream and every connected client wants all of
// it.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	log        *logging.Logger
	mu         sync.RWMutex
}

// NewHub creates a Hub. Call Run in its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logging.Component("notify"),
	}
}

// Run drives the hub's event loop until ctx-independent shutdown; callers
// that need graceful shutdown should stop feeding Broadcast and let the
// process exit, mirroring the teacher's WSHub.Run (no internal stop
// channel there either).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("client disconnected", "clients", len(h.clients))

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("failed to marshal event", "error", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends an event to every connected client. Non-blocking: if the
// hub's internal buffer is full, the event is dropped and logged, the same
// trade-off the teacher's WSHub makes for a slow or stalled hub loop.
func (h *Hub) Broadcast(eventType EventType, data interface{}) {
	event := &Event{ID: uuid.NewString(), Type: eventType, Data: data, Timestamp: time.Now().Unix()}

	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast channel full, dropping event", "type", eventType)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and registers a Client
// with the hub. Wire this at whatever path the CLI's optional local HTTP
// server exposes (e.g. "/events").
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256), hub: h}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains and discards inbound messages, purely to notice when the
// client goes away (subscribers are read-only; there is nothing for them
// to send).
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
