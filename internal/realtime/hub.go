// Package realtime implements in-process event fanout to connected
// WebSocket sessions. Delivery is best effort: slow or disconnected
// sessions are skipped, nothing is queued or retried.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

const AdminRoom = "admin"

// UserRoom returns the private room key for a user
func UserRoom(userID string) string {
	return "user_" + userID
}

// Envelope is the wire frame for every hub event
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks rooms and per-user presence for one channel (chat or
// notifications). It is safe for concurrent use.
type Hub struct {
	name string

	mu       sync.RWMutex
	rooms    map[string]map[*Client]bool
	presence map[string]string // userID -> session ID
}

func NewHub(name string) *Hub {
	return &Hub{
		name:     name,
		rooms:    make(map[string]map[*Client]bool),
		presence: make(map[string]string),
	}
}

// Join adds the client to a room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
}

// JoinUser adds the client to the user's private room and records presence.
// A reconnect overwrites the previous session.
func (h *Hub) JoinUser(c *Client, userID string) {
	h.Join(c, UserRoom(userID))

	h.mu.Lock()
	defer h.mu.Unlock()
	c.userID = userID
	h.presence[userID] = c.ID
}

// JoinAdmin adds the client to the shared admin room.
func (h *Hub) JoinAdmin(c *Client) {
	h.Join(c, AdminRoom)
}

// Leave removes the client from every room. If the client was the live
// session for a user it clears presence and returns that user's ID so the
// caller can broadcast the offline status.
func (h *Hub) Leave(c *Client) (offlineUserID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range c.rooms {
		if members := h.rooms[room]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.rooms = make(map[string]bool)

	if c.userID != "" && h.presence[c.userID] == c.ID {
		delete(h.presence, c.userID)
		return c.userID
	}
	return ""
}

// IsOnline reports whether the user has a live session on this hub.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.presence[userID]
	return ok
}

// OnlineUsers returns the IDs of all users with a live session.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.presence))
	for userID := range h.presence {
		users = append(users, userID)
	}
	return users
}

// Emit marshals the event once and sends it to every member of the room.
// An empty room is a no-op; a member with a full send buffer is dropped
// from this delivery.
func (h *Hub) Emit(room, event string, data interface{}) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"hub":   h.name,
			"event": event,
			"error": err,
		}).Warn("failed to encode hub event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; at-most-once delivery, skip it.
		}
	}
}

// EmitToUser sends an event to one user's private room.
func (h *Hub) EmitToUser(userID, event string, data interface{}) {
	h.Emit(UserRoom(userID), event, data)
}

// EmitToAdmin sends an event to the admin room.
func (h *Hub) EmitToAdmin(event string, data interface{}) {
	h.Emit(AdminRoom, event, data)
}
