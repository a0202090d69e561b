package state

import (
	"errors"
	"fmt"

	"github.com/groupon/backbeat-sub000/internal/domain"
)

// Ошибки переходов.
var (
	// ErrInvalidStatusChange — переход отсутствует в графе.
	// Обе ошибки InvalidClientStatusChange и InvalidServerStatusChange
	// сопоставляются с ней через errors.Is.
	ErrInvalidStatusChange = errors.New("invalid status change")

	// ErrStaleStatusChange — статусы в БД уже не совпадают с наблюдёнными.
	// Другой обработчик успел изменить узел; ничего не записано.
	ErrStaleStatusChange = errors.New("stale status change")
)

// InvalidClientStatusChange — недопустимый переход клиентского статуса.
type InvalidClientStatusChange struct {
	CurrentStatus   domain.ClientStatus `json:"current_status"`
	AttemptedStatus domain.ClientStatus `json:"attempted_status"`
}

func (e *InvalidClientStatusChange) Error() string {
	return fmt.Sprintf("cannot transition current_client_status from %s to %s",
		e.CurrentStatus, e.AttemptedStatus)
}

// Is позволяет errors.Is(err, ErrInvalidStatusChange).
func (e *InvalidClientStatusChange) Is(target error) bool {
	return target == ErrInvalidStatusChange
}

// InvalidServerStatusChange — недопустимый переход серверного статуса.
type InvalidServerStatusChange struct {
	Message string
}

func (e *InvalidServerStatusChange) Error() string {
	return e.Message
}

// Is позволяет errors.Is(err, ErrInvalidStatusChange).
func (e *InvalidServerStatusChange) Is(target error) bool {
	return target == ErrInvalidStatusChange
}
