package realtime

import (
	"time"

	"github.com/logsmarket001/api-fidelity-trust/internal/models"
)

// Notification event names
const (
	EventNotification = "notification"
	EventNewMessage   = "new_message"
	EventUserStatus   = "user_status"
)

// NotificationPayload is the shape delivered on the notifications channel
type NotificationPayload struct {
	Type    string                 `json:"type"`
	Content string                 `json:"content"`
	Data    map[string]interface{} `json:"data"`
}

// Notifier is the single place notification payloads are formatted. Ledger
// and chat code hand it domain objects; it decides wording and routing.
type Notifier struct {
	notifications *Hub
}

func NewNotifier(notifications *Hub) *Notifier {
	return &Notifier{notifications: notifications}
}

func transactionPayload(tx *models.Transaction) NotificationPayload {
	content := "Credit Alert"
	if tx.IsDebit() {
		content = "Debit Alert"
	}
	return NotificationPayload{
		Type:    "transaction",
		Content: content,
		Data: map[string]interface{}{
			"userId":        tx.UserID,
			"transactionId": tx.ID.Hex(),
			"type":          tx.Type,
			"action":        tx.Action,
			"amount":        tx.Amount.String(),
			"status":        tx.Status,
		},
	}
}

// TransactionCreated alerts the account owner about a new ledger entry
func (n *Notifier) TransactionCreated(tx *models.Transaction) {
	n.notifications.EmitToUser(tx.UserID, EventNotification, transactionPayload(tx))
}

// TransactionUpdated alerts the account owner about a settlement or amendment
func (n *Notifier) TransactionUpdated(tx *models.Transaction) {
	n.notifications.EmitToUser(tx.UserID, EventNotification, transactionPayload(tx))
}

func chatPayload(userID, senderName string, isAdmin bool) NotificationPayload {
	senderID := userID
	if isAdmin {
		senderID = "admin"
	}
	return NotificationPayload{
		Type:    "chat",
		Content: "New message from " + senderName,
		Data: map[string]interface{}{
			"userId":     userID,
			"senderId":   senderID,
			"senderName": senderName,
			"isAdmin":    isAdmin,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// ChatMessageFromCustomer alerts the admin room about a customer message
func (n *Notifier) ChatMessageFromCustomer(userID, senderName string) {
	n.notifications.EmitToAdmin(EventNotification, chatPayload(userID, senderName, false))
}

// ChatMessageFromAdmin alerts the customer about a support reply
func (n *Notifier) ChatMessageFromAdmin(userID string) {
	n.notifications.EmitToUser(userID, EventNotification, chatPayload(userID, "Support", true))
}
