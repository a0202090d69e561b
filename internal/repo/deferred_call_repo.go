package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeferredCallRepo — отложенные вызовы, ожидающие своего fire_at.
type DeferredCallRepo struct {
	pool *pgxpool.Pool
}

// NewDeferredCallRepo создаёт новый DeferredCallRepo.
func NewDeferredCallRepo(pool *pgxpool.Pool) *DeferredCallRepo {
	return &DeferredCallRepo{pool: pool}
}

// Create сохраняет отложенный вызов.
func (r *DeferredCallRepo) Create(ctx context.Context, call *domain.DeferredCall) error {
	query := `
		INSERT INTO deferred_calls (id, handler, target_type, target_id, args, fire_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		call.ID,
		call.Handler,
		call.TargetType,
		call.TargetID,
		nullJSON(call.Args),
		call.FireAt,
		call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deferred call: %w", err)
	}
	return nil
}

// ClaimDue удаляет и возвращает наступившие вызовы.
//
// FOR UPDATE SKIP LOCKED позволяет нескольким экземплярам забирать
// разные вызовы без ожидания друг друга.
func (r *DeferredCallRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.DeferredCall, error) {
	query := `
		DELETE FROM deferred_calls
		WHERE id IN (
			SELECT id FROM deferred_calls
			WHERE fire_at <= $1
			ORDER BY fire_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, handler, target_type, target_id, args, fire_at, created_at
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due calls: %w", err)
	}
	return scanDeferredCalls(rows)
}

// LeaseDue сдвигает fire_at наступивших вызовов на until и возвращает их.
// Строки остаются в таблице до Delete: если выполнение не завершилось,
// вызов снова станет доступен после until.
func (r *DeferredCallRepo) LeaseDue(ctx context.Context, now, until time.Time, limit int) ([]domain.DeferredCall, error) {
	query := `
		UPDATE deferred_calls SET fire_at = $2
		WHERE id IN (
			SELECT id FROM deferred_calls
			WHERE fire_at <= $1
			ORDER BY fire_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, handler, target_type, target_id, args, fire_at, created_at
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, now, until, limit)
	if err != nil {
		return nil, fmt.Errorf("lease due calls: %w", err)
	}
	return scanDeferredCalls(rows)
}

// Delete удаляет выполненный вызов.
func (r *DeferredCallRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM deferred_calls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete deferred call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDeferredCalls(rows pgx.Rows) ([]domain.DeferredCall, error) {
	defer rows.Close()

	var calls []domain.DeferredCall
	for rows.Next() {
		var c domain.DeferredCall
		var args []byte
		if err := rows.Scan(&c.ID, &c.Handler, &c.TargetType, &c.TargetID, &args, &c.FireAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deferred call: %w", err)
		}
		c.Args = args
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Count возвращает количество ожидающих вызовов.
func (r *DeferredCallRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM deferred_calls`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count deferred calls: %w", err)
	}
	return count, nil
}
