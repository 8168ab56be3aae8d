package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one WebSocket session attached to a hub
type Client struct {
	ID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]bool
	userID string
}

// NewClient creates a session without a network connection. Used directly in
// tests; production sessions come from Serve.
func NewClient(hub *Hub) *Client {
	return &Client{
		ID:    uuid.New().String(),
		hub:   hub,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]bool),
	}
}

// Send exposes the outbound frame channel
func (c *Client) Send() <-chan []byte {
	return c.send
}

// inboundFrame is what clients send upward: a join or a relay request
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRequest struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

// InboundHandler reacts to client-sent frames after the join handshake
type InboundHandler func(c *Client, event string, data json.RawMessage)

// JoinAuthorizer decides whether a session may join as the claimed identity
type JoinAuthorizer func(userID string, isAdmin bool) bool

// Serve attaches a connection to the hub and runs the read and write pumps.
// The first frame must be a join; authorize vets the claimed identity and the
// connection is dropped when it refuses. onJoin fires after the client has
// joined its rooms; onLeave fires once the connection is gone, with the ID of
// the user that went offline (empty when none).
func Serve(hub *Hub, conn *websocket.Conn, authorize JoinAuthorizer, handler InboundHandler, onJoin func(c *Client), onLeave func(offlineUserID string)) {
	c := NewClient(hub)
	c.conn = conn

	go c.writePump()
	c.readPump(authorize, handler, onJoin, onLeave)
}

func (c *Client) readPump(authorize JoinAuthorizer, handler InboundHandler, onJoin func(c *Client), onLeave func(offlineUserID string)) {
	defer func() {
		offline := c.hub.Leave(c)
		c.conn.Close()
		close(c.send)
		if onLeave != nil {
			onLeave(offline)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	joined := false
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithField("session_id", c.ID).Debug("websocket closed unexpectedly")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		// First frame must be a join; everything else is ignored until then.
		if !joined {
			if frame.Event != "join" {
				continue
			}
			var join joinRequest
			if err := json.Unmarshal(frame.Data, &join); err != nil {
				continue
			}
			if authorize != nil && !authorize(join.UserID, join.IsAdmin) {
				logrus.WithFields(logrus.Fields{
					"session_id": c.ID,
					"user_id":    join.UserID,
				}).Warn("websocket join rejected")
				return
			}
			if join.IsAdmin {
				c.hub.JoinAdmin(c)
			} else if join.UserID != "" {
				c.hub.JoinUser(c, join.UserID)
			} else {
				continue
			}
			joined = true
			if onJoin != nil {
				onJoin(c)
			}
			continue
		}

		if handler != nil {
			handler(c, frame.Event, frame.Data)
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
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// UserID returns the user this session joined as, empty for admin sessions
func (c *Client) UserID() string {
	return c.userID
}
