package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage represents one message in a customer's support conversation.
// IsUser marks customer-sent messages; admin replies have IsUser=false.
type ChatMessage struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID  string             `bson:"user_id" json:"user_id"`
	Message string             `bson:"message" json:"message"`
	IsUser  bool               `bson:"is_user" json:"is_user"`
	IsRead  bool               `bson:"is_read" json:"is_read"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewChatMessage creates an unread message
func NewChatMessage(userID, message string, isUser bool) *ChatMessage {
	now := time.Now()
	return &ChatMessage{
		UserID:    userID,
		Message:   message,
		IsUser:    isUser,
		IsRead:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Conversation is the admin-side summary of one customer's thread
type Conversation struct {
	UserID        string    `bson:"_id" json:"user_id"`
	UserName      string    `bson:"user_name" json:"user_name"`
	LastMessage   string    `bson:"last_message" json:"last_message"`
	LastMessageAt time.Time `bson:"last_message_at" json:"last_message_at"`
	UnreadCount   int64     `bson:"unread_count" json:"unread_count"`
	IsOnline      bool      `bson:"-" json:"is_online"`
}

// Validate validates the message data
func (m *ChatMessage) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if m.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
