package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/state"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher — единственная точка, через которую запускаются обработчики.
//
// Dispatcher также несёт зависимости, нужные обработчикам: хранилище,
// state.Manager, шлюз клиента и очередь.
type Dispatcher struct {
	store  *repo.Store
	state  *state.Manager
	client ClientGateway
	queue  Queue

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	jitter func(n int) int

	schedulers map[SchedulerKind]scheduler
}

// Config — конфигурация Dispatcher.
type Config struct {
	Store  *repo.Store
	State  *state.Manager
	Client ClientGateway
	Queue  Queue
	Logger *slog.Logger

	// Tracer для спанов PerformEvent (default: telemetry.Tracer()).
	Tracer trace.Tracer

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	// Jitter возвращает случайное число в [0, n) (default: rand.IntN).
	Jitter func(n int) int
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	jitter := cfg.Jitter
	if jitter == nil {
		jitter = rand.IntN
	}
	sm := cfg.State
	if sm == nil {
		sm = state.New(state.Config{Store: cfg.Store, Logger: logger, Now: now})
	}

	d := &Dispatcher{
		store:  cfg.Store,
		state:  sm,
		client: cfg.Client,
		queue:  cfg.Queue,
		logger: logger,
		tracer: tracer,
		now:    now,
		jitter: jitter,
	}
	d.schedulers = map[SchedulerKind]scheduler{
		PerformEvent:  d.performEvent,
		ScheduleNow:   d.scheduleNow,
		ScheduleAt:    d.scheduleAt,
		ScheduleRetry: d.scheduleRetry,
	}
	return d
}

// State возвращает state.Manager диспетчера.
func (d *Dispatcher) State() *state.Manager {
	return d.state
}

// FireEvent запускает обработчик через его стратегию по умолчанию.
func (d *Dispatcher) FireEvent(ctx context.Context, h Handler, node *domain.Node) error {
	return d.FireEventWith(ctx, h, node, h.DefaultScheduler())
}

// FireEventWith запускает обработчик через указанную стратегию.
// Для деактивированного узла ничего не делает.
func (d *Dispatcher) FireEventWith(ctx context.Context, h Handler, node *domain.Node, kind SchedulerKind) error {
	if node.IsDeactivated() {
		d.logger.Debug("skipping event for deactivated node",
			"event", h.Name(),
			"node_id", node.ID,
		)
		return nil
	}

	schedule, ok := d.schedulers[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScheduler, kind)
	}
	return schedule(ctx, h, node)
}

// LoadTarget загружает узел или, если id — это workflow, его корень.
func (d *Dispatcher) LoadTarget(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	node, err := d.store.Nodes.GetByID(ctx, id)
	if err == nil {
		return node, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("load node: %w", err)
	}

	wf, err := d.store.Workflows.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	return wf.AsNode(), nil
}

// LoadCallTarget загружает цель отложенного вызова.
func (d *Dispatcher) LoadCallTarget(ctx context.Context, call domain.DeferredCall) (*domain.Node, error) {
	if call.TargetType == domain.TargetWorkflow {
		wf, err := d.store.Workflows.GetByID(ctx, call.TargetID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: workflow %s", ErrTargetNotFound, call.TargetID)
		}
		if err != nil {
			return nil, fmt.Errorf("load workflow: %w", err)
		}
		return wf.AsNode(), nil
	}
	node, err := d.store.Nodes.GetByID(ctx, call.TargetID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: node %s", ErrTargetNotFound, call.TargetID)
	}
	if err != nil {
		return nil, fmt.Errorf("load node: %w", err)
	}
	return node, nil
}

// children возвращает прямых детей узла (для корня — узлы верхнего уровня).
func (d *Dispatcher) children(ctx context.Context, node *domain.Node) ([]domain.Node, error) {
	var parentID *uuid.UUID
	if !node.IsRoot() {
		parentID = &node.ID
	}
	children, err := d.store.Nodes.ListChildren(ctx, node.WorkflowID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

func (d *Dispatcher) workflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	wf, err := d.store.Workflows.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	return wf, nil
}

func (d *Dispatcher) user(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := d.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// responseOf извлекает тело ответа клиента из ошибки шлюза.
func responseOf(err error) json.RawMessage {
	var r responder
	if errors.As(err, &r) && len(r.ResponseBody()) > 0 {
		return r.ResponseBody()
	}
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return body
}
