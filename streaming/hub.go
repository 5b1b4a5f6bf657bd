// Package streaming pushes alert and score events to WebSocket clients.
// Clients join rooms ("game:<id>", "team:<abbr>", "sport:<key>") and only
// receive events published to rooms they joined, plus global events.
package streaming

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"upset-radar-api/config"
	"upset-radar-api/metrics"
)

// EventType labels a streamed event.
type EventType string

const (
	EventTypeAlert     EventType = "alert"
	EventTypeScore     EventType = "score_update"
	EventTypeStatus    EventType = "status"
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is one message on the wire. Room is empty for global events.
type Event struct {
	Type      EventType   `json:"type"`
	Room      string      `json:"room,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub owns all client connections and fans events out to rooms.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

// Client is one WebSocket connection with its room memberships.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	rooms  map[string]bool
	roomMu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run is the hub's event loop. Call it once, in its own goroutine.
func (h *Hub) Run() {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(count))
			config.Log.Debugf("WebSocket client connected (%d total)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(count))
			config.Log.Debugf("WebSocket client disconnected (%d remaining)", count)

		case event := <-h.broadcast:
			h.deliver(event)

		case <-heartbeat.C:
			h.Publish(Event{
				Type: EventTypeHeartbeat,
				Data: map[string]interface{}{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) deliver(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		config.Log.Errorf("WebSocket marshal failed: %v", err)
		return
	}

	// Write lock: slow consumers are evicted from the client map mid-loop.
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if event.Room != "" && !client.inRoom(event.Room) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer; cut it loose rather than backing up the hub.
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Publish queues an event for delivery. Non-blocking; a full queue drops
// the event so job goroutines never stall on the hub.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		config.Log.Warn("WebSocket broadcast queue full, dropping event")
	}
}

// EmitToRoom publishes an event visible only to members of the room.
func (h *Hub) EmitToRoom(room string, eventType EventType, data interface{}) {
	h.Publish(Event{Type: eventType, Room: room, Data: data})
}

// BroadcastAlert sends an alert to its game room and globally.
func (h *Hub) BroadcastAlert(gameID string, payload interface{}) error {
	if gameID != "" {
		h.EmitToRoom("game:"+gameID, EventTypeAlert, payload)
	}
	h.Publish(Event{Type: EventTypeAlert, Data: payload})
	return nil
}

// BroadcastScore publishes a fresh score to the game's room.
func (h *Hub) BroadcastScore(gameID string, payload interface{}) {
	h.EmitToRoom("game:"+gameID, EventTypeScore, payload)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and starts the client's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		config.Log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		rooms: make(map[string]bool),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) inRoom(room string) bool {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.rooms[room]
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				config.Log.Debugf("WebSocket read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage processes join/leave requests from the client.
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type  string   `json:"type"`
		Rooms []string `json:"rooms"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "join":
		c.roomMu.Lock()
		for _, room := range msg.Rooms {
			c.rooms[room] = true
		}
		c.roomMu.Unlock()
	case "leave":
		c.roomMu.Lock()
		for _, room := range msg.Rooms {
			delete(c.rooms, room)
		}
		c.roomMu.Unlock()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
