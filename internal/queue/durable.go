package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
)

// Способы доставки (метка метрики route).
const (
	routePublish = "publish"
	routeStore   = "store"
)

// Publisher публикует вызов, время которого наступило.
// Реализуется mq.Publisher.
type Publisher interface {
	PublishDeferredCall(ctx context.Context, call domain.DeferredCall) error
}

// Config — конфигурация Durable.
type Config struct {
	Calls repo.DeferredCallStore

	// Publisher может быть nil: тогда все вызовы идут в БД,
	// и их доставляет scheduler.Relay.
	Publisher Publisher

	Logger *slog.Logger
	Now    func() time.Time
}

// Durable — очередь на RabbitMQ и Postgres.
type Durable struct {
	calls     repo.DeferredCallStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewDurable создаёт новую Durable.
func NewDurable(cfg Config) *Durable {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Durable{
		calls:     cfg.Calls,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Enqueue ставит вызов в очередь.
//
// 1. Вызов, время которого наступило, публикуется сразу, если ctx
//    не несёт транзакцию.
// 2. Будущий вызов, вызов из транзакции или вызов, который не удалось
//    опубликовать, сохраняется в deferred_calls (в транзакции ctx, если
//    она есть). Вызов из транзакции становится виден relay только после
//    коммита, вместе с узлами, которые он обрабатывает.
func (q *Durable) Enqueue(ctx context.Context, call domain.DeferredCall) error {
	if q.publisher != nil && call.IsDue(q.now()) && !repo.InTransaction(ctx) {
		err := q.publisher.PublishDeferredCall(ctx, call)
		if err == nil {
			telemetry.DeferredCallsEnqueued.WithLabelValues(call.Handler, routePublish).Inc()
			return nil
		}
		q.logger.Warn("publish deferred call failed, storing for relay",
			"handler", call.Handler,
			"target_id", call.TargetID,
			"error", err,
		)
	}

	if err := q.calls.Create(ctx, &call); err != nil {
		return fmt.Errorf("store deferred call: %w", err)
	}
	telemetry.DeferredCallsEnqueued.WithLabelValues(call.Handler, routeStore).Inc()

	q.logger.Debug("deferred call stored",
		"handler", call.Handler,
		"target_id", call.TargetID,
		"fire_at", call.FireAt,
	)
	return nil
}
