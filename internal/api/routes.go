package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(),
	)

	// Users
	mux.Handle("POST /api/v1/users", chain(http.HandlerFunc(h.CreateUser)))
	mux.Handle("GET /api/v1/users/{id}", chain(http.HandlerFunc(h.GetUser)))

	// Workflows
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.FindOrCreateWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}/tree", chain(http.HandlerFunc(h.GetWorkflowTree)))
	mux.Handle("GET /api/v1/workflows/{id}/tree/print", chain(http.HandlerFunc(h.PrintWorkflowTree)))
	mux.Handle("POST /api/v1/workflows/{id}/signal/{name}", chain(http.HandlerFunc(h.Signal)))
	mux.Handle("PUT /api/v1/workflows/{id}/pause", chain(http.HandlerFunc(h.PauseWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}/resume", chain(http.HandlerFunc(h.ResumeWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}/complete", chain(http.HandlerFunc(h.CompleteWorkflow)))

	// Nodes
	mux.Handle("GET /api/v1/nodes/{id}", chain(http.HandlerFunc(h.GetNode)))
	mux.Handle("GET /api/v1/nodes/{id}/history", chain(http.HandlerFunc(h.NodeHistory)))
	mux.Handle("PUT /api/v1/nodes/{id}/status/{status}", chain(http.HandlerFunc(h.UpdateNodeStatus)))
	mux.Handle("POST /api/v1/nodes/{id}/decisions", chain(http.HandlerFunc(h.AddDecisions)))
	mux.Handle("PUT /api/v1/nodes/{id}/reset", chain(http.HandlerFunc(h.ResetNode)))
	mux.Handle("PUT /api/v1/nodes/{id}/retry", chain(http.HandlerFunc(h.RetryNode)))
	mux.Handle("PUT /api/v1/nodes/{id}/deactivate", chain(http.HandlerFunc(h.DeactivateNode)))
}
