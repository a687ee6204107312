// Package dashboard serves a live view of a running optimization or
// validation pipeline over WebSocket. Grounded on the teacher's internal/
// websocket.Hub: the same register/unregister/broadcast channel loop and
// ServeWs upgrade handshake, repointed from trade-state snapshots at
// RunStatus snapshots.
package dashboard

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RunStatus is the once-a-second broadcast snapshot of a running search or
// validation pipeline.
type RunStatus struct {
	RunID       string        `json:"runId"`
	Mode        string        `json:"mode"`
	Iteration   int           `json:"iteration"`
	Total       int           `json:"total"`
	BestFitness float64       `json:"bestFitness"`
	ETA         time.Duration `json:"etaNanos"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// upgrader restricts dashboard connections to localhost (development) and
// the 10.10.10.0/24 network.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if origin == "http://localhost:5173" || origin == "https://localhost:5173" {
			return true
		}
		if host, _, err := net.SplitHostPort(r.Host); err == nil {
			if strings.HasPrefix(host, "10.10.10.") {
				return true
			}
		}
		return false
	},
}

// Client is one connected WebSocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages connected dashboard clients and broadcasts RunStatus
// snapshots to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub constructs an idle Hub; call Run in its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives the hub's event loop forever; it takes no context and has no
// stop condition (mirror of the teacher's Hub.Run).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a raw message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// BroadcastStatus JSON-encodes status and broadcasts it.
func (h *Hub) BroadcastStatus(status RunStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return err
	}
	h.Broadcast(body)
	return nil
}

// RunStatusLoop broadcasts statusFunc's result once a second until stop is
// closed. Run it in its own goroutine alongside Run.
func (h *Hub) RunStatusLoop(statusFunc func() RunStatus, stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.BroadcastStatus(statusFunc()); err != nil {
				log.Printf("dashboard: marshal run status: %v", err)
			}
		}
	}
}

// ServeWs upgrades r to a WebSocket connection and registers the resulting
// Client with the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard: upgrade: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound traffic (dashboard clients are receive-only) and
// unregisters the client when the connection drops; its pong handler keeps
// the connection alive against pingPeriod.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains c.send to the socket and pings on pingPeriod to detect
// dead connections.
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
