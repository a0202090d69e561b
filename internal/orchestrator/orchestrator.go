package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/state"
	"github.com/groupon/backbeat-sub000/internal/tree"
)

// Orchestrator — фасад ядра для внешних вызовов.
type Orchestrator struct {
	store      *repo.Store
	dispatcher *events.Dispatcher
	state      *state.Manager
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// Config — конфигурация Orchestrator.
type Config struct {
	Store      *repo.Store
	Dispatcher *events.Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		state:      cfg.Dispatcher.State(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
		now:        now,
	}
}

// UserSpec — параметры нового пользователя.
type UserSpec struct {
	Name                 string `json:"name" validate:"required,max=255"`
	DecisionEndpoint     string `json:"decision_endpoint" validate:"omitempty,url"`
	ActivityEndpoint     string `json:"activity_endpoint" validate:"omitempty,url"`
	NotificationEndpoint string `json:"notification_endpoint" validate:"omitempty,url"`
}

// CreateUser регистрирует клиента и его endpoint'ы.
func (o *Orchestrator) CreateUser(ctx context.Context, spec UserSpec) (*domain.User, error) {
	if err := o.check(spec); err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:                   uuid.New(),
		Name:                 spec.Name,
		DecisionEndpoint:     spec.DecisionEndpoint,
		ActivityEndpoint:     spec.ActivityEndpoint,
		NotificationEndpoint: spec.NotificationEndpoint,
		CreatedAt:            o.now(),
	}
	if err := o.store.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	o.logger.Info("user created", "user_id", user.ID, "name", user.Name)
	return user, nil
}

// User возвращает пользователя по ID.
func (o *Orchestrator) User(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return o.store.Users.GetByID(ctx, id)
}

// Node возвращает узел по ID.
func (o *Orchestrator) Node(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	return o.store.Nodes.GetByID(ctx, id)
}

// StatusChanges возвращает журнал изменений статуса узла.
func (o *Orchestrator) StatusChanges(ctx context.Context, nodeID uuid.UUID) ([]domain.StatusChange, error) {
	if _, err := o.store.Nodes.GetByID(ctx, nodeID); err != nil {
		return nil, err
	}
	return o.store.StatusChanges.ListByNode(ctx, nodeID)
}

// Tree загружает дерево workflow.
func (o *Orchestrator) Tree(ctx context.Context, workflowID uuid.UUID) (*tree.Tree, error) {
	wf, err := o.store.Workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return tree.Load(ctx, o.store.Nodes, wf)
}

// check валидирует spec по тегам validate.
func (o *Orchestrator) check(spec any) error {
	if err := o.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidSpec, verrs.Error())
		}
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return nil
}
