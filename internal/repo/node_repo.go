package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NodeRepo — репозиторий узлов в Postgres.
type NodeRepo struct {
	pool *pgxpool.Pool
}

// NewNodeRepo создаёт новый NodeRepo.
func NewNodeRepo(pool *pgxpool.Pool) *NodeRepo {
	return &NodeRepo{pool: pool}
}

const nodeColumns = `
	id, workflow_id, user_id, parent_id, parent_link_id, seq, name, mode, legacy_type,
	current_server_status, current_client_status, fires_at, retries_remaining,
	retry_interval, client_data, client_metadata, subject, decider, created_at, updated_at`

// Create создаёт узел. seq выдаёт БД.
func (r *NodeRepo) Create(ctx context.Context, node *domain.Node) error {
	query := `
		INSERT INTO nodes (id, workflow_id, user_id, parent_id, parent_link_id, name, mode,
		                   legacy_type, current_server_status, current_client_status, fires_at,
		                   retries_remaining, retry_interval, client_data, client_metadata,
		                   subject, decider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		RETURNING seq
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		node.ID,
		node.WorkflowID,
		node.UserID,
		node.ParentID,
		node.ParentLinkID,
		node.Name,
		node.Mode,
		node.LegacyType,
		node.CurrentServerStatus,
		node.CurrentClientStatus,
		node.FiresAt,
		node.RetriesRemaining,
		node.RetryInterval,
		nullJSON(node.ClientData),
		nullJSON(node.ClientMetadata),
		node.Subject,
		node.Decider,
		node.CreatedAt,
	).Scan(&node.Seq)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	node.UpdatedAt = node.CreatedAt
	return nil
}

// GetByID возвращает узел по ID.
func (r *NodeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = $1`
	return scanNode(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// ListByWorkflow возвращает все узлы workflow.
func (r *NodeRepo) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE workflow_id = $1 ORDER BY seq ASC`
	return r.list(ctx, "list nodes by workflow", query, workflowID)
}

// ListChildren возвращает прямых детей узла или узлы верхнего уровня.
func (r *NodeRepo) ListChildren(ctx context.Context, workflowID uuid.UUID, parentID *uuid.UUID) ([]domain.Node, error) {
	if parentID == nil {
		query := `SELECT ` + nodeColumns + `
			FROM nodes WHERE workflow_id = $1 AND parent_id IS NULL ORDER BY seq ASC`
		return r.list(ctx, "list top-level nodes", query, workflowID)
	}
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE parent_id = $1 ORDER BY seq ASC`
	return r.list(ctx, "list children", query, *parentID)
}

// ListLinkedTo возвращает узлы, связанные с id через parent_link_id.
func (r *NodeRepo) ListLinkedTo(ctx context.Context, id uuid.UUID) ([]domain.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE parent_link_id = $1 ORDER BY seq ASC`
	return r.list(ctx, "list linked nodes", query, id)
}

// ListByServerStatus возвращает узлы workflow с серверным статусом status.
func (r *NodeRepo) ListByServerStatus(ctx context.Context, workflowID uuid.UUID, status domain.ServerStatus) ([]domain.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM nodes WHERE workflow_id = $1 AND current_server_status = $2 ORDER BY seq ASC`
	return r.list(ctx, "list nodes by server status", query, workflowID, status)
}

// CompareAndSetStatus обновляет статусы, только если в строке всё ещё observed.
func (r *NodeRepo) CompareAndSetStatus(ctx context.Context, id uuid.UUID, observed, next domain.Statuses) (bool, error) {
	query := `
		UPDATE nodes
		SET current_server_status = $4, current_client_status = $5, updated_at = now()
		WHERE id = $1 AND current_server_status = $2 AND current_client_status = $3
	`
	result, err := conn(ctx, r.pool).Exec(ctx, query,
		id,
		observed.Server,
		observed.Client,
		next.Server,
		next.Client,
	)
	if err != nil {
		return false, fmt.Errorf("compare and set node status: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetStatus обновляет статусы без проверки текущих значений.
func (r *NodeRepo) SetStatus(ctx context.Context, id uuid.UUID, next domain.Statuses) error {
	query := `
		UPDATE nodes
		SET current_server_status = $2, current_client_status = $3, updated_at = now()
		WHERE id = $1
	`
	result, err := conn(ctx, r.pool).Exec(ctx, query, id, next.Server, next.Client)
	if err != nil {
		return fmt.Errorf("set node status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementRetries уменьшает retries_remaining, не опускаясь ниже нуля.
func (r *NodeRepo) DecrementRetries(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE nodes
		SET retries_remaining = GREATEST(retries_remaining - 1, 0), updated_at = now()
		WHERE id = $1
		RETURNING retries_remaining
	`
	var remaining int
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("decrement retries: %w", err)
	}
	return remaining, nil
}

// --- Helpers ---

func (r *NodeRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Node, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

func scanNode(row pgx.Row) (*domain.Node, error) {
	var node domain.Node
	var clientData, clientMetadata []byte

	err := row.Scan(
		&node.ID,
		&node.WorkflowID,
		&node.UserID,
		&node.ParentID,
		&node.ParentLinkID,
		&node.Seq,
		&node.Name,
		&node.Mode,
		&node.LegacyType,
		&node.CurrentServerStatus,
		&node.CurrentClientStatus,
		&node.FiresAt,
		&node.RetriesRemaining,
		&node.RetryInterval,
		&clientData,
		&clientMetadata,
		&node.Subject,
		&node.Decider,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	node.ClientData = clientData
	node.ClientMetadata = clientMetadata
	return &node, nil
}
