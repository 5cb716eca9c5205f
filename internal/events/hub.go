// Package events streams moderation events to WebSocket clients. The Hub
// upgrades HTTP connections via gobwas/ws and broadcasts every event to all
// connected clients; it is a one-way feed, so client frames are read only to
// detect disconnects.
//
// The hub serves a handful of dashboard clients, so it runs one reader
// goroutine per connection rather than an event loop.
package events

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

// DefaultWriteTimeout bounds each broadcast write so one stalled client
// cannot hold up the rest.
const DefaultWriteTimeout = 5 * time.Second

// client is a single connected event-stream subscriber.
type client struct {
	id      string
	conn    net.Conn
	writeMu sync.Mutex // serializes outbound frames
}

// write sends one WebSocket text frame to the client with a deadline.
func (c *client) write(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(c.conn, ws.OpText, data)
}

// Hub manages event-stream subscribers and broadcasts events to them.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*client
	writeTimeout time.Duration

	// onCountChange, if set, is called with the new client count whenever a
	// client connects or disconnects (used for the metrics gauge).
	onCountChange func(int)
}

// NewHub creates an empty hub.
func NewHub(onCountChange func(int)) *Hub {
	return &Hub{
		clients:       make(map[string]*client),
		writeTimeout:  DefaultWriteTimeout,
		onCountChange: onCountChange,
	}
}

// HandleUpgrade upgrades the HTTP request to a WebSocket connection and
// registers it with the hub. It is mounted directly as an http.HandlerFunc.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[events] upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{id: uuid.New().String(), conn: conn}

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.notifyCount(count)
	log.Printf("[events] client connected id=%s addr=%s total=%d", c.id, r.RemoteAddr, count)

	go h.readLoop(c)
}

// readLoop drains client frames until the connection errors or closes. The
// feed is one-way; inbound payloads are discarded.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c.id)

	for {
		if _, _, err := wsutil.ReadClientData(c.conn); err != nil {
			return
		}
	}
}

// remove unregisters a client and closes its connection.
func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.conn.Close()
	h.notifyCount(count)
	log.Printf("[events] client disconnected id=%s total=%d", id, count)
}

// Broadcast JSON-encodes the event and sends it to every connected client.
// Clients whose write fails or times out are dropped; the broadcast itself
// never blocks on a dead peer beyond the write timeout.
func (h *Hub) Broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[events] marshal event: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data, h.writeTimeout); err != nil {
			log.Printf("[events] write failed id=%s: %v (dropping client)", c.id, err)
			h.remove(c.id)
		}
	}
}

// Count returns the current number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return n
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
	h.notifyCount(0)
}

func (h *Hub) notifyCount(n int) {
	if h.onCountChange != nil {
		h.onCountChange(n)
	}
}
