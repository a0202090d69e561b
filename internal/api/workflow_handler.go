package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// FindOrCreateWorkflow возвращает workflow с ключом (user, subject, decider),
// создавая его при необходимости. 201 для нового, 200 для существующего.
// POST /api/v1/workflows
func (h *Handler) FindOrCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := decodeBody(r, &req, false); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf, created, err := h.orch.FindOrCreateWorkflow(r.Context(), req)
	if HandleError(w, h.logger, err) {
		return
	}

	resp := WorkflowResponse{Workflow: *wf, Created: created}
	if created {
		Created(w, resp)
		return
	}
	Success(w, resp)
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	wf, err := h.orch.Workflow(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, wf)
}

// GetWorkflowTree возвращает вложенную проекцию дерева.
// GET /api/v1/workflows/{id}/tree
func (h *Handler) GetWorkflowTree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	t, err := h.orch.Tree(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, t.View())
}

// PrintWorkflowTree возвращает дерево в текстовом виде.
// GET /api/v1/workflows/{id}/tree/print
func (h *Handler) PrintWorkflowTree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	t, err := h.orch.Tree(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, map[string]string{"print": t.Render()})
}

// Signal добавляет в workflow сигнал с именем из пути.
// POST /api/v1/workflows/{id}/signal/{name}
func (h *Handler) Signal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	var req SignalRequest
	if err := decodeBody(r, &req, true); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	req.Name = r.PathValue("name")

	node, err := h.orch.Signal(r.Context(), id, req)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, node)
}

// PauseWorkflow ставит workflow на паузу.
// PUT /api/v1/workflows/{id}/pause
func (h *Handler) PauseWorkflow(w http.ResponseWriter, r *http.Request) {
	h.workflowAction(w, r, h.orch.Pause)
}

// ResumeWorkflow снимает паузу.
// PUT /api/v1/workflows/{id}/resume
func (h *Handler) ResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	h.workflowAction(w, r, h.orch.Resume)
}

// CompleteWorkflow завершает workflow.
// PUT /api/v1/workflows/{id}/complete
func (h *Handler) CompleteWorkflow(w http.ResponseWriter, r *http.Request) {
	h.workflowAction(w, r, h.orch.Complete)
}

func (h *Handler) workflowAction(w http.ResponseWriter, r *http.Request, action func(context.Context, uuid.UUID) error) {
	id, ok := pathID(w, r, "invalid workflow id")
	if !ok {
		return
	}
	if HandleError(w, h.logger, action(r.Context(), id)) {
		return
	}
	NoContent(w)
}

// pathID разбирает {id} из пути. При ошибке отвечает 400.
func pathID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, message)
		return uuid.Nil, false
	}
	return id, true
}
