package events

import (
	"context"
	"encoding/json"

	"github.com/groupon/backbeat-sub000/internal/domain"
)

// SchedulerKind — стратегия планирования обработчика.
type SchedulerKind string

const (
	PerformEvent  SchedulerKind = "perform_event"
	ScheduleNow   SchedulerKind = "schedule_now"
	ScheduleAt    SchedulerKind = "schedule_at"
	ScheduleRetry SchedulerKind = "schedule_retry"
)

// Handler — один шаг оркестрации над узлом.
type Handler interface {
	// Name — имя обработчика; по нему реестр восстанавливает обработчик
	// из отложенного вызова.
	Name() string

	// DefaultScheduler — стратегия, которую FireEvent использует по умолчанию.
	DefaultScheduler() SchedulerKind

	// Args — аргументы обработчика для отложенного вызова (может быть nil).
	Args() json.RawMessage

	// Handle выполняет шаг. Каскады идут через d.FireEvent.
	Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error
}

// Queue — надёжная очередь отложенных вызовов (at-least-once).
type Queue interface {
	Enqueue(ctx context.Context, call domain.DeferredCall) error
}

// ClientGateway — HTTP-вызовы клиентских endpoints.
//
// Ошибка вызова превращается обработчиком в событие ClientError,
// а не пробрасывается наружу.
type ClientGateway interface {
	PerformDecision(ctx context.Context, user *domain.User, node *domain.Node) error
	PerformActivity(ctx context.Context, user *domain.User, node *domain.Node) error
	Notify(ctx context.Context, user *domain.User, node *domain.Node, message string, errBody json.RawMessage) error
}

// responder реализуют ошибки шлюза, несущие сырой ответ клиента.
type responder interface {
	ResponseBody() json.RawMessage
}
