package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/mq"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/state"
)

// handleEventDue обрабатывает сообщение из очереди events.due.
func (w *Worker) handleEventDue(ctx context.Context, delivery *mq.Delivery) error {
	call, err := mq.ParsePayload[domain.DeferredCall](&delivery.Message)
	if err != nil {
		return fmt.Errorf("%w: %w", mq.ErrPermanent, err)
	}

	if err := w.Process(ctx, call); err != nil {
		if errors.Is(err, ErrMalformedCall) {
			return fmt.Errorf("%w: %w", mq.ErrPermanent, err)
		}
		return err
	}
	return nil
}

// Process выполняет один доставленный вызов.
//
// 1. Восстанавливает обработчик по имени из реестра.
// 2. Загружает цель заново: вызов мог ждать в очереди, и узел
//    с тех пор изменился или был деактивирован.
// 3. Выполняет обработчик через Dispatcher со стратегией PerformEvent.
//
// Проигранные гонки, недопустимые переходы и исчезнувшие цели означают,
// что вызов устарел: он логируется и считается выполненным.
func (w *Worker) Process(ctx context.Context, call domain.DeferredCall) error {
	handler, err := w.registry.Build(call.Handler, call.Args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedCall, err)
	}

	node, err := w.dispatcher.LoadCallTarget(ctx, call)
	if errors.Is(err, events.ErrTargetNotFound) {
		w.logger.Warn("deferred call target not found, dropping",
			"handler", call.Handler,
			"target_id", call.TargetID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	err = w.dispatcher.FireEventWith(ctx, handler, node, events.PerformEvent)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrStaleStatusChange), errors.Is(err, state.ErrInvalidStatusChange):
		w.logger.Info("deferred call is outdated, dropping",
			"handler", call.Handler,
			"target_id", call.TargetID,
			"reason", err,
		)
		return nil
	default:
		return fmt.Errorf("run %s: %w", call.Handler, err)
	}
}

// poll берёт наступившие вызовы из БД в аренду до now+pollInterval
// и выполняет их. Строка удаляется только после выполнения: вызов,
// который не удалось выполнить (в том числе из-за остановки воркера),
// снова станет доступен, когда аренда истечёт.
func (w *Worker) poll(ctx context.Context) {
	now := w.now()
	calls, err := w.store.DeferredCalls.LeaseDue(ctx, now, now.Add(w.pollInterval), w.batchSize)
	if err != nil {
		w.logger.Error("failed to lease due calls", "error", err)
		return
	}

	if len(calls) == 0 {
		return
	}

	w.logger.Debug("poll found due calls", "count", len(calls))

	for _, call := range calls {
		if ctx.Err() != nil {
			return
		}

		err := w.Process(ctx, call)
		switch {
		case err == nil:
		case errors.Is(err, ErrMalformedCall):
			w.logger.Error("dropping malformed call", "call_id", call.ID, "error", err)
		default:
			w.logger.Error("failed to process call from poll, keeping it for the next lease",
				"call_id", call.ID,
				"handler", call.Handler,
				"error", err,
			)
			continue
		}

		// Выполненный вызов удаляется даже при остановке воркера.
		err = w.store.DeferredCalls.Delete(context.WithoutCancel(ctx), call.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			w.logger.Error("failed to delete processed call", "call_id", call.ID, "error", err)
		}
	}
}
