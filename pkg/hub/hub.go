package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Hub broadcasts canonical events to room-scoped websocket subscribers.
// Delivery is at-most-once per connected session: nothing is buffered
// for disconnected clients, re-joining rooms after a reconnect is the
// client's job.
type Hub struct {
	mutex   sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func New() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Publish delivers the event to every subscriber of its rooms and to
// every connected client via the global channel. Slow clients are
// dropped rather than blocking the publisher.
func (h *Hub) Publish(event Event) {
	frame, err := json.Marshal(outboundFrame{
		ID:        event.ID,
		Type:      string(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		log.Printf("[error] hub: marshal event %s: %v", event.Type, err)
		return
	}

	h.mutex.RLock()
	targets := make(map[*Client]struct{}, len(h.clients))
	for _, room := range event.Rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	// Global channel: every connected client gets the event once.
	for c := range h.clients {
		targets[c] = struct{}{}
	}
	h.mutex.RUnlock()

	for c := range targets {
		if !c.trySend(frame) {
			h.Unregister(c)
		}
	}
}

// Relay forwards a transient event (typing) to its rooms only, without
// the global channel and without persistence.
func (h *Hub) Relay(event Event) {
	frame, err := json.Marshal(outboundFrame{
		ID:        event.ID,
		Type:      string(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return
	}

	h.mutex.RLock()
	targets := make(map[*Client]struct{})
	for _, room := range event.Rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	h.mutex.RUnlock()

	for c := range targets {
		if !c.trySend(frame) {
			h.Unregister(c)
		}
	}
}

func (h *Hub) Register(c *Client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	h.mutex.Unlock()
}

func (h *Hub) Unregister(c *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for room := range c.rooms() {
			if set, ok := h.rooms[room]; ok {
				delete(set, c)
				if len(set) == 0 {
					delete(h.rooms, room)
				}
			}
		}
		c.closeSend()
	}
	h.mutex.Unlock()
}

func (h *Hub) join(c *Client, room string) {
	h.mutex.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.mutex.Unlock()
	c.addRoom(room)
}

func (h *Hub) leave(c *Client, room string) {
	h.mutex.Lock()
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mutex.Unlock()
	c.removeRoom(room)
}

// RoomSize reports the current subscriber count for a room.
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

// ClientCount reports the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

type outboundFrame struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// inboundFrame is the client protocol: join/leave a room or relay a
// typing indicator into a conversation room.
type inboundFrame struct {
	Action         string `json:"action"` // join | leave | typing
	Room           string `json:"room,omitempty"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

// Client is one connected websocket session.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint

	roomMutex sync.Mutex
	joined    map[string]struct{}

	sendMutex sync.Mutex
	closed    bool
}

// trySend enqueues a frame unless the client is gone or its buffer is
// full. The send mutex orders enqueues against closeSend, so a
// publisher that lost the race to Unregister sees the closed flag
// instead of a closed channel.
func (c *Client) trySend(frame []byte) bool {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMutex.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMutex.Unlock()
}

// NewClient wires a websocket connection into the hub and starts its
// read/write pumps. The user room is joined automatically.
func NewClient(h *Hub, conn *websocket.Conn, userID uint) *Client {
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		joined: make(map[string]struct{}),
	}
	h.Register(c)
	if userID != 0 {
		h.join(c, UserRoom(userID))
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *Client) rooms() map[string]struct{} {
	c.roomMutex.Lock()
	defer c.roomMutex.Unlock()
	out := make(map[string]struct{}, len(c.joined))
	for r := range c.joined {
		out[r] = struct{}{}
	}
	return out
}

func (c *Client) addRoom(room string) {
	c.roomMutex.Lock()
	c.joined[room] = struct{}{}
	c.roomMutex.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.roomMutex.Lock()
	delete(c.joined, room)
	c.roomMutex.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
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
				log.Printf("[warn] hub: read error for user %d: %v", c.userID, err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Action {
		case "join":
			if frame.Room != "" {
				c.hub.join(c, frame.Room)
			}
		case "leave":
			if frame.Room != "" {
				c.hub.leave(c, frame.Room)
			}
		case "typing":
			if frame.ConversationID != 0 {
				c.hub.Relay(NewEvent(EventTyping, map[string]any{
					"conversation_id": frame.ConversationID,
					"user_id":         c.userID,
					"is_typing":       frame.IsTyping,
				}, ConversationRoom(frame.ConversationID)))
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
