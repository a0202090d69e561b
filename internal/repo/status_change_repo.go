package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusChangeRepo — журнал изменений статуса узлов.
type StatusChangeRepo struct {
	pool *pgxpool.Pool
}

// NewStatusChangeRepo создаёт новый StatusChangeRepo.
func NewStatusChangeRepo(pool *pgxpool.Pool) *StatusChangeRepo {
	return &StatusChangeRepo{pool: pool}
}

// Create добавляет запись в журнал.
func (r *StatusChangeRepo) Create(ctx context.Context, change *domain.StatusChange) error {
	query := `
		INSERT INTO status_changes (id, node_id, status_type, from_status, to_status, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		change.ID,
		change.NodeID,
		change.StatusType,
		change.FromStatus,
		change.ToStatus,
		nullJSON(change.Response),
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

// ListByNode возвращает журнал узла в порядке записи.
func (r *StatusChangeRepo) ListByNode(ctx context.Context, nodeID uuid.UUID) ([]domain.StatusChange, error) {
	query := `
		SELECT id, node_id, status_type, from_status, to_status, response, created_at
		FROM status_changes
		WHERE node_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		var response []byte
		if err := rows.Scan(&c.ID, &c.NodeID, &c.StatusType, &c.FromStatus, &c.ToStatus, &response, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.Response = response
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
