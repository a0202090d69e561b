package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Node — единица работы в дереве workflow: decision, activity, signal, timer или flag.
//
// Узел меняет статусы только через state.Manager. У узла два независимых
// измерения статуса: серверное (как движок ведёт узел) и клиентское
// (что сообщил внешний клиент).
type Node struct {
	// ID — уникальный идентификатор узла.
	ID uuid.UUID `json:"id"`

	// WorkflowID — workflow, которому принадлежит узел.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// UserID — владелец workflow; определяет endpoints клиента.
	UserID uuid.UUID `json:"user_id"`

	// ParentID — родитель в дереве. nil означает узел верхнего уровня
	// (его родитель — корень workflow).
	ParentID *uuid.UUID `json:"parent_id,omitempty"`

	// ParentLinkID — узел вне цепочки родителей, который ждёт завершения этого узла.
	ParentLinkID *uuid.UUID `json:"parent_link_id,omitempty"`

	// Seq — монотонный номер в рамках workflow; задаёт порядок соседей.
	Seq int64 `json:"seq"`

	Name       string     `json:"name"`
	Mode       Mode       `json:"mode"`
	LegacyType LegacyType `json:"legacy_type"`

	CurrentServerStatus ServerStatus `json:"current_server_status"`
	CurrentClientStatus ClientStatus `json:"current_client_status"`

	// FiresAt — самое раннее время запуска.
	FiresAt time.Time `json:"fires_at"`

	// RetriesRemaining — сколько повторов осталось после ошибки клиента.
	RetriesRemaining int `json:"retries_remaining"`

	// RetryInterval — базовый интервал повтора в минутах.
	RetryInterval int `json:"retry_interval"`

	// ClientData и ClientMetadata передаются клиенту как есть.
	ClientData     json.RawMessage `json:"client_data,omitempty"`
	ClientMetadata json.RawMessage `json:"client_metadata,omitempty"`

	Subject string `json:"subject"`
	Decider string `json:"decider"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// root отмечает псевдо-узел корня workflow (см. Workflow.AsNode).
	root bool
}

// Status возвращает пару текущих статусов узла.
func (n *Node) Status() Statuses {
	return Statuses{Server: n.CurrentServerStatus, Client: n.CurrentClientStatus}
}

// SetStatus записывает пару статусов в узел (без сохранения).
func (n *Node) SetStatus(s Statuses) {
	n.CurrentServerStatus = s.Server
	n.CurrentClientStatus = s.Client
}

// IsRoot возвращает true для псевдо-узла корня workflow.
func (n *Node) IsRoot() bool {
	return n.root
}

// IsDeactivated возвращает true, если узел отменён.
func (n *Node) IsDeactivated() bool {
	return n.CurrentServerStatus == ServerStatusDeactivated
}

// IsComplete возвращает true, если сервер считает узел завершённым.
func (n *Node) IsComplete() bool {
	return n.CurrentServerStatus == ServerStatusComplete
}

// IsBlocking возвращает true, если узел задерживает следующих соседей.
func (n *Node) IsBlocking() bool {
	return n.Mode == ModeBlocking
}

// IsFireAndForget возвращает true, если родитель не ждёт узел.
func (n *Node) IsFireAndForget() bool {
	return n.Mode == ModeFireAndForget
}

// NeedsClientAction возвращает false для узлов, которые не отправляются клиенту.
func (n *Node) NeedsClientAction() bool {
	return n.LegacyType != LegacyTypeFlag
}

// ParentOrWorkflow возвращает ID родителя, а для узлов верхнего уровня — ID workflow.
func (n *Node) ParentOrWorkflow() uuid.UUID {
	if n.ParentID != nil {
		return *n.ParentID
	}
	return n.WorkflowID
}

// Notifies возвращает узлы, которые нужно уведомить о завершении этого узла:
// родителя (или корень workflow) и узел по parent_link_id.
func (n *Node) Notifies() []uuid.UUID {
	ids := []uuid.UUID{n.ParentOrWorkflow()}
	if n.ParentLinkID != nil {
		ids = append(ids, *n.ParentLinkID)
	}
	return ids
}

// Statuses — пара статусов узла, сервер и клиент.
type Statuses struct {
	Server ServerStatus `json:"current_server_status"`
	Client ClientStatus `json:"current_client_status"`
}

// StatusChange — запись журнала изменений статуса. Только добавляется.
type StatusChange struct {
	ID         uuid.UUID       `json:"id"`
	NodeID     uuid.UUID       `json:"node_id"`
	StatusType StatusType      `json:"status_type"`
	FromStatus string          `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	Response   json.RawMessage `json:"response,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
