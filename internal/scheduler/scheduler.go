package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groupon/backbeat-sub000/internal/queue"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
)

// Relay переносит наступившие отложенные вызовы из БД в очередь сообщений.
type Relay struct {
	tx        repo.Transactor
	calls     repo.DeferredCallStore
	publisher queue.Publisher
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config — конфигурация Relay.
type Config struct {
	Store     *repo.Store
	Publisher queue.Publisher
	Logger    *slog.Logger
	BatchSize int // вызовов за одну транзакцию (default: 100)
	Now       func() time.Time
}

// New создаёт новый Relay.
func New(cfg Config) *Relay {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Relay{
		tx:        cfg.Store.Tx,
		calls:     cfg.Store.DeferredCalls,
		publisher: cfg.Publisher,
		logger:    logger,
		batchSize: batchSize,
		now:       now,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. В транзакции забирает до batchSize наступивших вызовов
//    (FOR UPDATE SKIP LOCKED, строки удаляются).
// 2. Публикует каждый в RabbitMQ.
// 3. Ошибка публикации откатывает транзакцию: вызовы остаются в БД
//    до следующего тика, уже опубликованные будут доставлены повторно.
// 4. Повторяет, пока батчи полные.
func (r *Relay) Tick(ctx context.Context) error {
	now := r.now()
	total := 0

	for {
		var relayed int
		err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
			calls, err := r.calls.ClaimDue(ctx, now, r.batchSize)
			if err != nil {
				return fmt.Errorf("claim due calls: %w", err)
			}

			for _, call := range calls {
				if err := r.publisher.PublishDeferredCall(ctx, call); err != nil {
					return fmt.Errorf("publish deferred call %s: %w", call.ID, err)
				}
			}
			relayed = len(calls)
			return nil
		})
		if err != nil {
			return err
		}

		total += relayed
		telemetry.DeferredCallsRelayed.Add(float64(relayed))

		if relayed < r.batchSize {
			break
		}
	}

	if total > 0 {
		r.logger.Info("relay tick completed", "relayed", total)
	}
	return nil
}
