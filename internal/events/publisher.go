// Package events publishes domain events to RabbitMQ for downstream
// consumers (email pipeline, audit archive). Publishing is fire and forget
// from the caller's point of view; a broker outage never fails an API
// operation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/logsmarket001/api-fidelity-trust/internal/models"
)

const exchangeName = "fidelity.events"

type Publisher interface {
	PublishTransactionEvent(ctx context.Context, event string, tx *models.Transaction) error
	PublishChatEvent(ctx context.Context, userID string, fromCustomer bool) error
	Close() error
}

type Config struct {
	URL           string
	RetryAttempts int
	RetryDelay    time.Duration
}

type publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *Config
}

func NewPublisher(config *Config) (Publisher, error) {
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 2 * time.Second
	}

	p := &publisher{config: config}
	if err := p.connect(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *publisher) connect() error {
	var err error
	p.conn, err = amqp.Dial(p.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = p.channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	return nil
}

// TransactionEvent is the wire shape for ledger events
type TransactionEvent struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Subtype       string    `json:"subtype,omitempty"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatEvent is the wire shape for chat activity events
type ChatEvent struct {
	Event        string    `json:"event"`
	UserID       string    `json:"user_id"`
	FromCustomer bool      `json:"from_customer"`
	Timestamp    time.Time `json:"timestamp"`
}

func (p *publisher) PublishTransactionEvent(ctx context.Context, event string, tx *models.Transaction) error {
	routingKey := fmt.Sprintf("%s.%s", event, tx.Type)
	return p.publish(ctx, routingKey, &TransactionEvent{
		Event:         event,
		TransactionID: tx.ID.Hex(),
		UserID:        tx.UserID,
		Type:          tx.Type,
		Subtype:       tx.Subtype,
		Action:        tx.Action,
		Status:        tx.Status,
		Amount:        tx.Amount.String(),
		Timestamp:     time.Now(),
	})
}

func (p *publisher) PublishChatEvent(ctx context.Context, userID string, fromCustomer bool) error {
	direction := "admin"
	if fromCustomer {
		direction = "customer"
	}
	routingKey := fmt.Sprintf("chat.message.%s", direction)
	return p.publish(ctx, routingKey, &ChatEvent{
		Event:        "chat.message",
		UserID:       userID,
		FromCustomer: fromCustomer,
		Timestamp:    time.Now(),
	})
}

func (p *publisher) publish(ctx context.Context, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	}

	var publishErr error
	for attempt := 0; attempt < p.config.RetryAttempts; attempt++ {
		publishErr = p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, publishing)
		if publishErr == nil {
			return nil
		}

		if p.conn.IsClosed() {
			if reconnectErr := p.reconnect(); reconnectErr != nil {
				logrus.WithError(reconnectErr).Warn("failed to reconnect to RabbitMQ")
			}
		}

		if attempt < p.config.RetryAttempts-1 {
			time.Sleep(p.config.RetryDelay * time.Duration(attempt+1))
		}
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", p.config.RetryAttempts, publishErr)
}

func (p *publisher) reconnect() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return p.connect()
}

func (p *publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NoopPublisher drops all events. Used when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransactionEvent(ctx context.Context, event string, tx *models.Transaction) error {
	return nil
}

func (NoopPublisher) PublishChatEvent(ctx context.Context, userID string, fromCustomer bool) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
