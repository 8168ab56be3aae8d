// Package chat implements the customer support messaging service.
package chat

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logsmarket001/api-fidelity-trust/internal/apperrors"
	"github.com/logsmarket001/api-fidelity-trust/internal/models"
	"github.com/logsmarket001/api-fidelity-trust/internal/realtime"
	"github.com/logsmarket001/api-fidelity-trust/internal/repository"
)

// Notifier is the slice of the realtime notifier the chat service uses
type Notifier interface {
	ChatMessageFromCustomer(userID, senderName string)
	ChatMessageFromAdmin(userID string)
}

// EventPublisher emits chat events for downstream consumers
type EventPublisher interface {
	PublishChatEvent(ctx context.Context, userID string, fromCustomer bool) error
}

// Metrics is the subset of the monitoring service the chat service reports to
type Metrics interface {
	RecordChatMessage(direction string)
}

type Service interface {
	SendAsCustomer(ctx context.Context, userID, message string) (*models.ChatMessage, error)
	SendAsAdmin(ctx context.Context, userID, message string) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, userID string) ([]*models.ChatMessage, error)
	UnreadForCustomer(ctx context.Context, userID string) (int64, error)
	MarkReadForCustomer(ctx context.Context, userID string) (int64, error)
	MarkReadForAdmin(ctx context.Context, userID string) (int64, error)
	ListConversations(ctx context.Context) ([]*models.Conversation, error)
}

type service struct {
	messages  repository.ChatRepository
	accounts  repository.AccountRepository
	hub       *realtime.Hub
	notifier  Notifier
	publisher EventPublisher
	metrics   Metrics
}

func NewService(messages repository.ChatRepository, accounts repository.AccountRepository, hub *realtime.Hub, notifier Notifier, publisher EventPublisher, metrics Metrics) Service {
	return &service{
		messages:  messages,
		accounts:  accounts,
		hub:       hub,
		notifier:  notifier,
		publisher: publisher,
		metrics:   metrics,
	}
}

// messageEvent is the chat-channel frame for a delivered message
type messageEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	IsUser    bool      `json:"is_user"`
	CreatedAt time.Time `json:"created_at"`
}

func toEvent(m *models.ChatMessage) messageEvent {
	return messageEvent{
		ID:        m.ID.Hex(),
		UserID:    m.UserID,
		Message:   m.Message,
		IsUser:    m.IsUser,
		CreatedAt: m.CreatedAt,
	}
}

func (s *service) SendAsCustomer(ctx context.Context, userID, message string) (*models.ChatMessage, error) {
	if message == "" {
		return nil, apperrors.Validation("message is required")
	}

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg := models.NewChatMessage(userID, message, true)
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.hub.EmitToAdmin(realtime.EventNewMessage, toEvent(msg))
	s.notifier.ChatMessageFromCustomer(userID, account.FullName())
	s.publishEvent(ctx, userID, true)
	s.metrics.RecordChatMessage("customer")

	return msg, nil
}

func (s *service) SendAsAdmin(ctx context.Context, userID, message string) (*models.ChatMessage, error) {
	if message == "" {
		return nil, apperrors.Validation("message is required")
	}

	// Replies go to a specific customer; the account must exist.
	if _, err := s.accounts.GetByUserID(ctx, userID); err != nil {
		return nil, err
	}

	msg := models.NewChatMessage(userID, message, false)
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.hub.EmitToUser(userID, realtime.EventNewMessage, toEvent(msg))
	s.notifier.ChatMessageFromAdmin(userID)
	s.publishEvent(ctx, userID, false)
	s.metrics.RecordChatMessage("admin")

	return msg, nil
}

func (s *service) publishEvent(ctx context.Context, userID string, fromCustomer bool) {
	if err := s.publisher.PublishChatEvent(ctx, userID, fromCustomer); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Warn("failed to publish chat event")
	}
}

func (s *service) ListMessages(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	return s.messages.GetByUserID(ctx, userID)
}

// UnreadForCustomer counts support replies the customer has not seen yet.
func (s *service) UnreadForCustomer(ctx context.Context, userID string) (int64, error) {
	return s.messages.CountUnread(ctx, userID, false)
}

// MarkReadForCustomer marks admin replies as read when the customer opens
// the thread.
func (s *service) MarkReadForCustomer(ctx context.Context, userID string) (int64, error) {
	return s.messages.MarkRead(ctx, userID, false)
}

// MarkReadForAdmin marks customer messages as read when the admin opens
// the thread.
func (s *service) MarkReadForAdmin(ctx context.Context, userID string) (int64, error) {
	return s.messages.MarkRead(ctx, userID, true)
}

func (s *service) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	conversations, err := s.messages.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	for _, conversation := range conversations {
		conversation.IsOnline = s.hub.IsOnline(conversation.UserID)
	}

	return conversations, nil
}
