package api

import (
	"net/http"

	"github.com/google/uuid"
)

// CreateUser регистрирует клиента и его endpoint'ы.
// POST /api/v1/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeBody(r, &req, false); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	user, err := h.orch.CreateUser(r.Context(), req)
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, user)
}

// GetUser возвращает клиента по ID.
// GET /api/v1/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return
	}

	user, err := h.orch.User(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, user)
}
