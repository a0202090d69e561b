package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Workflow — дерево узлов одного бизнес-процесса.
//
// Workflow адресуется как корень дерева (см. AsNode), но вместо двух
// измерений статуса у него один простой статус.
type Workflow struct {
	ID      uuid.UUID      `json:"id"`
	Name    string         `json:"name"`
	Status  WorkflowStatus `json:"status"`
	Subject string         `json:"subject"`
	Decider string         `json:"decider"`
	UserID  uuid.UUID      `json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

// IsPaused возвращает true, если workflow на паузе.
func (w *Workflow) IsPaused() bool {
	return w.Status == WorkflowStatusPaused
}

// IsComplete возвращает true, если workflow завершён.
func (w *Workflow) IsComplete() bool {
	return w.Status == WorkflowStatusComplete
}

// AsNode возвращает псевдо-узел корня workflow.
//
// Корень считается обрабатывающим детей: к нему применяются
// ScheduleNextNode и NodeComplete, но state.Manager его не меняет.
func (w *Workflow) AsNode() *Node {
	return &Node{
		ID:                  w.ID,
		WorkflowID:          w.ID,
		UserID:              w.UserID,
		Name:                w.Name,
		Mode:                ModeBlocking,
		LegacyType:          LegacyTypeDecision,
		CurrentServerStatus: ServerStatusProcessingChildren,
		CurrentClientStatus: ClientStatusComplete,
		Subject:             w.Subject,
		Decider:             w.Decider,
		CreatedAt:           w.CreatedAt,
		root:                true,
	}
}

// User — владелец workflow и адреса его клиентских endpoints.
type User struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	DecisionEndpoint     string    `json:"decision_endpoint"`
	ActivityEndpoint     string    `json:"activity_endpoint"`
	NotificationEndpoint string    `json:"notification_endpoint"`
	CreatedAt            time.Time `json:"created_at"`
}

// TargetType — на что указывает отложенный вызов.
type TargetType string

const (
	TargetNode     TargetType = "node"
	TargetWorkflow TargetType = "workflow"
)

// DeferredCall — отложенный вызов обработчика события.
//
// Создаётся стратегиями планирования и доставляется воркеру
// не раньше FireAt. Доставка at-least-once.
type DeferredCall struct {
	ID         uuid.UUID       `json:"id"`
	Handler    string          `json:"handler"`
	TargetType TargetType      `json:"target_type"`
	TargetID   uuid.UUID       `json:"target_id"`
	Args       json.RawMessage `json:"args,omitempty"`
	FireAt     time.Time       `json:"fire_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IsDue возвращает true, если вызов можно выполнять в момент now.
func (c *DeferredCall) IsDue(now time.Time) bool {
	return !c.FireAt.After(now)
}
