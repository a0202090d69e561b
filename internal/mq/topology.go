package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeEvents Exchange = "backbeat.events"
	ExchangeDLQ    Exchange = "backbeat.dlq"
)

// Queues.
const (
	QueueEventsDue Queue = "events.due"
	QueueDLQEvents Queue = "dlq.events"
)

// Routing keys.
const (
	RoutingKeyDue       RoutingKey = "due"
	RoutingKeyDLQEvents RoutingKey = "events"
)

// binding — очередь, её аргументы и привязка к обменнику.
type binding struct {
	queue      Queue
	args       amqp.Table
	exchange   Exchange
	routingKey RoutingKey
}

func topology() []binding {
	return []binding{
		{
			queue: QueueEventsDue,
			args: amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
			},
			exchange:   ExchangeEvents,
			routingKey: RoutingKeyDue,
		},
		{
			queue:      QueueDLQEvents,
			exchange:   ExchangeDLQ,
			routingKey: RoutingKeyDLQEvents,
		},
	}
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна:
// её вызывает каждый процесс при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Обменники
		for _, ex := range []Exchange{ExchangeEvents, ExchangeDLQ} {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range topology() {
			// 2. Очередь
			_, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				b.args,          // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			// 3. Привязка
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Backbeat RabbitMQ Topology:

    backbeat.events (direct)
    └── events.due [routing: due]
            Consumer: Worker
            DLQ: dlq.events

    backbeat.dlq (direct)
    └── dlq.events [routing: events]
            Manual processing
  `
}
