package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип события.
type MessageType string

const (
	MessageTypeJobReady     MessageType = "job.ready"
	MessageTypeJobCompleted MessageType = "job.completed"
)

// Message — конверт события в очереди.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// JobReadyPayload — job можно выполнять.
type JobReadyPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobCompletedPayload — job перешёл в терминальное состояние.
type JobCompletedPayload struct {
	JobID   uuid.UUID  `json:"job_id"`
	GroupID *uuid.UUID `json:"group_id,omitempty"`
	Stage   string     `json:"stage"`
	State   string     `json:"state"`
	Error   string     `json:"error,omitempty"`
	Attempt int        `json:"attempt"`
}

// Publisher публикует события backend.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

func newMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publish отправляет сообщение как persistent JSON.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, publishing); err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}
		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", key,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishJobReady сообщает worker'ам о готовом job.
func (p *Publisher) PublishJobReady(ctx context.Context, jobID uuid.UUID) error {
	msg := newMessage(MessageTypeJobReady, JobReadyPayload{JobID: jobID})
	return p.Publish(ctx, ExchangeJobs, RoutingKeyReady, msg)
}

// PublishJobCompleted сообщает dispatcher'у о завершении job.
func (p *Publisher) PublishJobCompleted(ctx context.Context, payload JobCompletedPayload) error {
	msg := newMessage(MessageTypeJobCompleted, payload)
	return p.Publish(ctx, ExchangeJobs, RoutingKeyCompleted, msg)
}
