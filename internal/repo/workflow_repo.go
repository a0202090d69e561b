package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WorkflowRepo — репозиторий workflow.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// Create создаёт workflow.
// Дубликат (user_id, subject, decider) возвращает ErrAlreadyExists.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	query := `
		INSERT INTO workflows (id, name, status, subject, decider, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		wf.ID,
		wf.Name,
		wf.Status,
		wf.Subject,
		wf.Decider,
		wf.UserID,
		wf.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `
		SELECT id, name, status, subject, decider, user_id, created_at
		FROM workflows
		WHERE id = $1
	`
	return scanWorkflow(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// Find возвращает workflow по (user_id, subject, decider).
func (r *WorkflowRepo) Find(ctx context.Context, userID uuid.UUID, subject, decider string) (*domain.Workflow, error) {
	query := `
		SELECT id, name, status, subject, decider, user_id, created_at
		FROM workflows
		WHERE user_id = $1 AND subject = $2 AND decider = $3
	`
	return scanWorkflow(conn(ctx, r.pool).QueryRow(ctx, query, userID, subject, decider))
}

// UpdateStatus меняет статус workflow.
func (r *WorkflowRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WorkflowStatus) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `UPDATE workflows SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.Status,
		&wf.Subject,
		&wf.Decider,
		&wf.UserID,
		&wf.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}
	return &wf, nil
}
