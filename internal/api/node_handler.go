package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/orchestrator"
)

// GetNode возвращает узел по ID.
// GET /api/v1/nodes/{id}
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid node id")
	if !ok {
		return
	}

	node, err := h.orch.Node(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, node)
}

// NodeHistory возвращает журнал изменений статуса узла.
// GET /api/v1/nodes/{id}/history
func (h *Handler) NodeHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid node id")
	if !ok {
		return
	}

	changes, err := h.orch.StatusChanges(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	List(w, changes, len(changes))
}

// UpdateNodeStatus применяет статус, присланный клиентом:
// processing, completed, errored или deactivated.
// PUT /api/v1/nodes/{id}/status/{status}
func (h *Handler) UpdateNodeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid node id")
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := decodeBody(r, &req, true); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	status := orchestrator.ClientUpdate(r.PathValue("status"))
	err := h.orch.UpdateClientStatus(r.Context(), id, status, req.Response)
	if HandleError(w, h.logger, err) {
		return
	}
	NoContent(w)
}

// AddDecisions добавляет детей узлу, который обрабатывает decider.
// POST /api/v1/nodes/{id}/decisions
func (h *Handler) AddDecisions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid node id")
	if !ok {
		return
	}

	var req DecisionsRequest
	if err := decodeBody(r, &req, false); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	nodes, err := h.orch.AddChildren(r.Context(), id, req.Nodes)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, nodes)
}

// ResetNode деактивирует потомков узла.
// PUT /api/v1/nodes/{id}/reset
func (h *Handler) ResetNode(w http.ResponseWriter, r *http.Request) {
	h.nodeAction(w, r, h.orch.Reset)
}

// RetryNode немедленно повторяет узел.
// PUT /api/v1/nodes/{id}/retry
func (h *Handler) RetryNode(w http.ResponseWriter, r *http.Request) {
	h.nodeAction(w, r, h.orch.Retry)
}

// DeactivateNode деактивирует узел вместе с потомками.
// PUT /api/v1/nodes/{id}/deactivate
func (h *Handler) DeactivateNode(w http.ResponseWriter, r *http.Request) {
	h.nodeAction(w, r, h.orch.Deactivate)
}

func (h *Handler) nodeAction(w http.ResponseWriter, r *http.Request, action func(context.Context, uuid.UUID) error) {
	id, ok := pathID(w, r, "invalid node id")
	if !ok {
		return
	}
	if HandleError(w, h.logger, action(r.Context(), id)) {
		return
	}
	NoContent(w)
}
