package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/logsmarket001/api-fidelity-trust/internal/middleware"
	"github.com/logsmarket001/api-fidelity-trust/internal/monitoring"
	"github.com/logsmarket001/api-fidelity-trust/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware on the HTTP
	// surface; the gateway terminates origins for WebSocket upgrades.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSController struct {
	chatHub          *realtime.Hub
	notificationsHub *realtime.Hub
	metrics          monitoring.MetricsService
}

func NewWSController(chatHub, notificationsHub *realtime.Hub, metrics monitoring.MetricsService) *WSController {
	return &WSController{
		chatHub:          chatHub,
		notificationsHub: notificationsHub,
		metrics:          metrics,
	}
}

// Chat upgrades the connection and serves the chat channel. User joins are
// announced to the admin room; typing events are relayed between the two
// sides without persistence.
func (w *WSController) Chat(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("chat websocket upgrade failed")
		return
	}

	w.metrics.IncrementConnections("chat")

	authorize := joinAuthorizer(ctx)
	onJoin := func(c *realtime.Client) {
		if userID := c.UserID(); userID != "" {
			w.chatHub.EmitToAdmin("user_joined", gin.H{"user_id": userID})
			w.chatHub.EmitToAdmin(realtime.EventUserStatus, gin.H{"user_id": userID, "status": "online"})
		}
	}

	onLeave := func(offlineUserID string) {
		w.metrics.DecrementConnections("chat")
		if offlineUserID != "" {
			w.chatHub.EmitToAdmin(realtime.EventUserStatus, gin.H{"user_id": offlineUserID, "status": "offline"})
		}
	}

	realtime.Serve(w.chatHub, conn, authorize, w.relayTyping, onJoin, onLeave)
}

// Notifications serves the notification channel. Inbound frames beyond the
// join are ignored.
func (w *WSController) Notifications(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("notifications websocket upgrade failed")
		return
	}

	w.metrics.IncrementConnections("notifications")

	onLeave := func(string) {
		w.metrics.DecrementConnections("notifications")
	}

	realtime.Serve(w.notificationsHub, conn, joinAuthorizer(ctx), nil, nil, onLeave)
}

// joinAuthorizer pins the join handshake to the authenticated caller: users
// may only join their own room, and the admin room requires the admin role.
func joinAuthorizer(ctx *gin.Context) realtime.JoinAuthorizer {
	callerID := middleware.CallerID(ctx)
	isAdmin := middleware.IsAdmin(ctx)
	return func(userID string, asAdmin bool) bool {
		if asAdmin {
			return isAdmin
		}
		return userID != "" && userID == callerID
	}
}

type typingFrame struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

func (w *WSController) relayTyping(c *realtime.Client, event string, data json.RawMessage) {
	var frame typingFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch event {
	case "typing":
		// Customer typing goes to the support console.
		if userID := c.UserID(); userID != "" {
			w.chatHub.EmitToAdmin("typing", gin.H{"user_id": userID, "typing": frame.Typing})
		}
	case "admin_typing":
		// Admin typing targets one customer.
		if c.UserID() == "" && frame.UserID != "" {
			w.chatHub.EmitToUser(frame.UserID, "admin_typing", gin.H{"typing": frame.Typing})
		}
	}
}
