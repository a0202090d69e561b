package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/telemetry"
)

// Change — запрошенное изменение статусов узла.
// Пустое значение измерения означает «не менять».
type Change struct {
	Server domain.ServerStatus
	Client domain.ClientStatus

	// Response сохраняется в журнале (например, тело ошибки клиента).
	Response json.RawMessage
}

// IsEmpty возвращает true, если изменение ничего не запрашивает.
func (c Change) IsEmpty() bool {
	return c.Server == "" && c.Client == ""
}

// Manager применяет переходы статусов узлов.
type Manager struct {
	store  *repo.Store
	logger *slog.Logger
	now    func() time.Time
}

// Config — конфигурация Manager.
type Config struct {
	Store  *repo.Store
	Logger *slog.Logger

	// Now — источник времени для журнала (default: time.Now).
	Now func() time.Time
}

// New создаёт новый Manager.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:  cfg.Store,
		logger: logger,
		now:    now,
	}
}

// Transition проверяет и применяет изменение статусов узла.
//
// 1. Каждое запрошенное измерение проверяется по своему графу.
// 2. Узел обновляется, только если статусы в БД равны node.Status().
// 3. На каждое запрошенное измерение пишется одна запись журнала.
// 4. node обновляется из БД.
//
// Ошибки: InvalidClientStatusChange / InvalidServerStatusChange до любых
// изменений, ErrStaleStatusChange при проигранной гонке.
func (m *Manager) Transition(ctx context.Context, node *domain.Node, change Change) error {
	if node.IsRoot() || change.IsEmpty() {
		return nil
	}

	if change.Client != "" && !CanTransitionClient(node.CurrentClientStatus, change.Client) {
		return &InvalidClientStatusChange{
			CurrentStatus:   node.CurrentClientStatus,
			AttemptedStatus: change.Client,
		}
	}
	if change.Server != "" && !CanTransitionServer(node.CurrentServerStatus, change.Server) {
		return &InvalidServerStatusChange{
			Message: fmt.Sprintf("cannot transition current_server_status from %s to %s",
				node.CurrentServerStatus, change.Server),
		}
	}

	return m.apply(ctx, node, change, true)
}

// Force применяет изменение без проверки графа и без сравнения статусов.
// Журнал пишется как обычно.
func (m *Manager) Force(ctx context.Context, node *domain.Node, change Change) error {
	if node.IsRoot() || change.IsEmpty() {
		return nil
	}
	return m.apply(ctx, node, change, false)
}

// WithRollback выполняет fn и при ошибке возвращает узлу прежние статусы.
//
// Статусы для отката — снимок до вызова fn, поверх которого наложен fallback.
// Некорректный переход не откатывается. Устаревший переход откатывается,
// только если fn уже успела сдвинуть сам узел: иначе гонку за узел
// выиграл другой исполнитель, и его статусы остаются как есть.
// Возвращается исходная ошибка fn.
func (m *Manager) WithRollback(ctx context.Context, node *domain.Node, fallback Change, fn func(ctx context.Context) error) error {
	if node.IsRoot() {
		return fn(ctx)
	}

	snapshot := node.Status()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidStatusChange) {
		return err
	}
	if errors.Is(err, ErrStaleStatusChange) && node.Status() == snapshot {
		return err
	}

	target := snapshot
	if fallback.Server != "" {
		target.Server = fallback.Server
	}
	if fallback.Client != "" {
		target.Client = fallback.Client
	}

	// В журнал попадают только измерения, которые действительно меняются.
	var restore Change
	if node.CurrentServerStatus != target.Server {
		restore.Server = target.Server
	}
	if node.CurrentClientStatus != target.Client {
		restore.Client = target.Client
	}

	m.logger.Warn("rolling back node status",
		"node_id", node.ID,
		"server", target.Server,
		"client", target.Client,
		"error", err,
	)

	if rbErr := m.Force(ctx, node, restore); rbErr != nil {
		return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}

// apply записывает изменение и журнал в одной транзакции.
func (m *Manager) apply(ctx context.Context, node *domain.Node, change Change, cas bool) error {
	observed := node.Status()
	next := observed
	if change.Server != "" {
		next.Server = change.Server
	}
	if change.Client != "" {
		next.Client = change.Client
	}

	var fresh *domain.Node
	err := m.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if cas {
			ok, err := m.store.Nodes.CompareAndSetStatus(ctx, node.ID, observed, next)
			if err != nil {
				return err
			}
			if !ok {
				return ErrStaleStatusChange
			}
		} else if err := m.store.Nodes.SetStatus(ctx, node.ID, next); err != nil {
			return err
		}

		now := m.now()
		if change.Server != "" {
			if err := m.audit(ctx, node.ID, domain.StatusTypeServer,
				string(observed.Server), string(next.Server), change.Response, now); err != nil {
				return err
			}
		}
		if change.Client != "" {
			if err := m.audit(ctx, node.ID, domain.StatusTypeClient,
				string(observed.Client), string(next.Client), change.Response, now); err != nil {
				return err
			}
		}

		var err error
		fresh, err = m.store.Nodes.GetByID(ctx, node.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStaleStatusChange) {
			telemetry.StaleStatusChanges.Inc()
			return err
		}
		return fmt.Errorf("apply status change: %w", err)
	}

	*node = *fresh

	if change.Server != "" {
		telemetry.StatusTransitions.WithLabelValues(string(domain.StatusTypeServer), string(next.Server)).Inc()
	}
	if change.Client != "" {
		telemetry.StatusTransitions.WithLabelValues(string(domain.StatusTypeClient), string(next.Client)).Inc()
	}
	return nil
}

func (m *Manager) audit(ctx context.Context, nodeID uuid.UUID, statusType domain.StatusType, from, to string, response json.RawMessage, at time.Time) error {
	return m.store.StatusChanges.Create(ctx, &domain.StatusChange{
		ID:         uuid.New(),
		NodeID:     nodeID,
		StatusType: statusType,
		FromStatus: from,
		ToStatus:   to,
		Response:   response,
		CreatedAt:  at,
	})
}
