package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/state"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// scheduler решает, когда выполнить обработчик.
type scheduler func(ctx context.Context, h Handler, node *domain.Node) error

// maxRetryJitter — верхняя граница случайной добавки (в минутах на попытку).
const maxRetryJitter = 30

// performEvent выполняет обработчик сразу, с логами, метриками и спаном.
func (d *Dispatcher) performEvent(ctx context.Context, h Handler, node *domain.Node) error {
	name := h.Name()
	logger := telemetry.WithNode(d.logger, node.ID.String(), node.WorkflowID.String()).With("event", name)

	ctx, span := d.tracer.Start(ctx, "event."+name, trace.WithAttributes(
		attribute.String(telemetry.AttrEvent, name),
		attribute.String(telemetry.AttrNodeID, node.ID.String()),
		attribute.String(telemetry.AttrWorkflowID, node.WorkflowID.String()),
		attribute.String(telemetry.AttrScheduler, string(PerformEvent)),
	))
	defer span.End()

	logger.Info("event started")
	start := time.Now()

	err := h.Handle(ctx, d, node)
	duration := time.Since(start)

	if err != nil {
		class := ErrorClass(err)
		logger.Error("event errored",
			"duration", duration,
			"error_class", class,
			"error", err,
		)
		telemetry.EventDuration.WithLabelValues(name, "error").Observe(duration.Seconds())
		telemetry.EventErrors.WithLabelValues(name, class).Inc()
		telemetry.SetError(span, err, attribute.String("error_class", class))
		return err
	}

	logger.Info("event succeeded", "duration", duration)
	telemetry.EventDuration.WithLabelValues(name, "success").Observe(duration.Seconds())
	return nil
}

// scheduleNow ставит обработчик в очередь на текущее время.
func (d *Dispatcher) scheduleNow(ctx context.Context, h Handler, node *domain.Node) error {
	return d.enqueue(ctx, h, node, d.now())
}

// scheduleAt ставит обработчик в очередь на node.FiresAt.
func (d *Dispatcher) scheduleAt(ctx context.Context, h Handler, node *domain.Node) error {
	fireAt := node.FiresAt
	if fireAt.IsZero() {
		fireAt = d.now()
	}
	return d.enqueue(ctx, h, node, fireAt)
}

// scheduleRetry ставит обработчик в очередь с экспоненциальной задержкой.
func (d *Dispatcher) scheduleRetry(ctx context.Context, h Handler, node *domain.Node) error {
	delay := RetryDelay(node.RetriesRemaining, node.RetryInterval, d.jitter(maxRetryJitter))
	return d.enqueue(ctx, h, node, d.now().Add(delay))
}

// RetryDelay вычисляет задержку перед повтором.
//
//	attempt = max(0, 4 - retriesRemaining)
//	delay   = attempt⁴ + retryInterval + jitter×(attempt+1)  минут
//
// jitter должен быть в [0, 30).
func RetryDelay(retriesRemaining, retryInterval, jitter int) time.Duration {
	attempt := max(0, 4-retriesRemaining)
	minutes := attempt*attempt*attempt*attempt + retryInterval + jitter*(attempt+1)
	return time.Duration(minutes) * time.Minute
}

func (d *Dispatcher) enqueue(ctx context.Context, h Handler, node *domain.Node, fireAt time.Time) error {
	if d.queue == nil {
		return fmt.Errorf("enqueue %s: no queue configured", h.Name())
	}

	targetType := domain.TargetNode
	if node.IsRoot() {
		targetType = domain.TargetWorkflow
	}

	call := domain.DeferredCall{
		ID:         uuid.New(),
		Handler:    h.Name(),
		TargetType: targetType,
		TargetID:   node.ID,
		Args:       h.Args(),
		FireAt:     fireAt,
		CreatedAt:  d.now(),
	}
	if err := d.queue.Enqueue(ctx, call); err != nil {
		return fmt.Errorf("enqueue %s: %w", h.Name(), err)
	}

	d.logger.Debug("event enqueued",
		"event", h.Name(),
		"node_id", node.ID,
		"fire_at", fireAt,
	)
	return nil
}

// ErrorClass возвращает короткое имя класса ошибки для логов и метрик.
func ErrorClass(err error) string {
	var invalidClient *state.InvalidClientStatusChange
	var invalidServer *state.InvalidServerStatusChange
	var r responder

	switch {
	case errors.As(err, &invalidClient):
		return "invalid_client_status_change"
	case errors.As(err, &invalidServer):
		return "invalid_server_status_change"
	case errors.Is(err, state.ErrStaleStatusChange):
		return "stale_status_change"
	case errors.As(err, &r):
		return "http_error"
	case errors.Is(err, ErrTargetNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "context"
	default:
		return "internal"
	}
}
