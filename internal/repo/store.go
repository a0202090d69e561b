package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Transactor выполняет fn в одной транзакции.
//
// Транзакция передаётся через ctx: все вызовы хранилищ с этим ctx
// выполняются внутри неё. Вложенный вызов переиспользует внешнюю транзакцию.
// Если fn вернула ошибку, транзакция откатывается.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NodeStore — хранилище узлов.
type NodeStore interface {
	// Create сохраняет узел и заполняет node.Seq.
	Create(ctx context.Context, node *domain.Node) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Node, error)

	// ListByWorkflow возвращает все узлы workflow в порядке seq.
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Node, error)

	// ListChildren возвращает прямых детей в порядке seq.
	// parentID == nil — узлы верхнего уровня workflow.
	ListChildren(ctx context.Context, workflowID uuid.UUID, parentID *uuid.UUID) ([]domain.Node, error)

	// ListLinkedTo возвращает узлы, у которых parent_link_id = id.
	ListLinkedTo(ctx context.Context, id uuid.UUID) ([]domain.Node, error)

	// ListByServerStatus возвращает узлы workflow с указанным серверным статусом.
	ListByServerStatus(ctx context.Context, workflowID uuid.UUID, status domain.ServerStatus) ([]domain.Node, error)

	// CompareAndSetStatus меняет статусы, только если текущие равны observed.
	// Возвращает false, если ни одна строка не обновлена.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, observed, next domain.Statuses) (bool, error)

	// SetStatus меняет статусы безусловно.
	SetStatus(ctx context.Context, id uuid.UUID, next domain.Statuses) error

	// DecrementRetries уменьшает retries_remaining на 1 и возвращает новое значение.
	DecrementRetries(ctx context.Context, id uuid.UUID) (int, error)
}

// WorkflowStore — хранилище workflow.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)

	// Find ищет workflow по (user, subject, decider).
	Find(ctx context.Context, userID uuid.UUID, subject, decider string) (*domain.Workflow, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WorkflowStatus) error
}

// UserStore — хранилище пользователей (клиентов).
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// StatusChangeStore — журнал изменений статуса.
type StatusChangeStore interface {
	Create(ctx context.Context, change *domain.StatusChange) error
	ListByNode(ctx context.Context, nodeID uuid.UUID) ([]domain.StatusChange, error)
}

// DeferredCallStore — отложенные вызовы обработчиков.
type DeferredCallStore interface {
	Create(ctx context.Context, call *domain.DeferredCall) error

	// ClaimDue забирает до limit вызовов с fire_at <= now и удаляет их.
	// Вызывается внутри транзакции: при откате вызовы возвращаются.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.DeferredCall, error)

	// LeaseDue откладывает до limit наступивших вызовов до until и возвращает их.
	// Выполненный вызов удаляется через Delete.
	LeaseDue(ctx context.Context, now, until time.Time, limit int) ([]domain.DeferredCall, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// Count возвращает число ожидающих вызовов.
	Count(ctx context.Context) (int, error)
}

// InTransaction сообщает, выполняется ли ctx внутри WithTransaction.
func InTransaction(ctx context.Context) bool {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return true
	}
	return ctx.Value(memoryTxKey{}) != nil
}

// Store объединяет все хранилища и транзакции.
type Store struct {
	Tx            Transactor
	Nodes         NodeStore
	Workflows     WorkflowStore
	Users         UserStore
	StatusChanges StatusChangeStore
	DeferredCalls DeferredCallStore
}
