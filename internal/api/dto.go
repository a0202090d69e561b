package api

import (
	"encoding/json"

	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/orchestrator"
)

// CreateUserRequest — запрос на регистрацию клиента.
type CreateUserRequest = orchestrator.UserSpec

// CreateWorkflowRequest — запрос find-or-create workflow.
type CreateWorkflowRequest = orchestrator.WorkflowSpec

// SignalRequest — параметры узла сигнала. Имя берётся из пути.
type SignalRequest = orchestrator.NodeSpec

// DecisionsRequest — дети, которые decider добавляет узлу.
type DecisionsRequest struct {
	Nodes []orchestrator.NodeSpec `json:"nodes"`
}

// StatusUpdateRequest — необязательное тело обновления статуса.
// Response сохраняется в журнале (например, описание ошибки клиента).
type StatusUpdateRequest struct {
	Response json.RawMessage `json:"response,omitempty"`
}

// WorkflowResponse — workflow с признаком создания.
type WorkflowResponse struct {
	domain.Workflow
	Created bool `json:"created"`
}
