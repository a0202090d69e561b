package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// MessageTypeEventDue — отложенный вызов обработчика, время которого наступило.
const MessageTypeEventDue MessageType = "event.due"

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishDeferredCall публикует вызов в events.due. ID сообщения равен ID вызова.
func (p *Publisher) PublishDeferredCall(ctx context.Context, call domain.DeferredCall) error {
	msg, err := NewDeferredCallMessage(call)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeEvents, RoutingKeyDue, msg)
}

// NewDeferredCallMessage упаковывает вызов в конверт.
func NewDeferredCallMessage(call domain.DeferredCall) (*Message, error) {
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("marshal deferred call: %w", err)
	}
	id := call.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Message{
		ID:        id.String(),
		Type:      MessageTypeEventDue,
		Payload:   payload,
		Timestamp: time.Now(),
	}, nil
}
