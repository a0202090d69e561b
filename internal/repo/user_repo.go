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

// UserRepo — репозиторий пользователей.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo создаёт новый UserRepo.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create создаёт пользователя.
func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, decision_endpoint, activity_endpoint, notification_endpoint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Name,
		nullString(user.DecisionEndpoint),
		nullString(user.ActivityEndpoint),
		nullString(user.NotificationEndpoint),
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID возвращает пользователя по ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, name, decision_endpoint, activity_endpoint, notification_endpoint, created_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	var decision, activity, notification *string

	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&decision,
		&activity,
		&notification,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if decision != nil {
		user.DecisionEndpoint = *decision
	}
	if activity != nil {
		user.ActivityEndpoint = *activity
	}
	if notification != nil {
		user.NotificationEndpoint = *notification
	}
	return &user, nil
}
