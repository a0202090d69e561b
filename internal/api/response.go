package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/orchestrator"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/state"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest          ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeInvalidStatusChange ErrorCode = "INVALID_STATUS_CHANGE"
	ErrCodeStaleStatusChange   ErrorCode = "STALE_STATUS_CHANGE"
	ErrCodeWorkflowComplete    ErrorCode = "WORKFLOW_COMPLETE"
	ErrCodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// Заполняются для недопустимого перехода клиентского статуса.
	CurrentStatus   string `json:"current_status,omitempty"`
	AttemptedStatus string `json:"attempted_status,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку ядра в HTTP ответ.
// Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var clientErr *state.InvalidClientStatusChange
	switch {
	case errors.As(err, &clientErr):
		JSON(w, http.StatusConflict, ErrorResponse{Error: ErrorDetail{
			Code:            ErrCodeInvalidStatusChange,
			Message:         clientErr.Error(),
			CurrentStatus:   string(clientErr.CurrentStatus),
			AttemptedStatus: string(clientErr.AttemptedStatus),
		}})
	case errors.Is(err, state.ErrInvalidStatusChange):
		Error(w, http.StatusConflict, ErrCodeInvalidStatusChange, err.Error())
	case errors.Is(err, state.ErrStaleStatusChange):
		Error(w, http.StatusConflict, ErrCodeStaleStatusChange, "node was changed concurrently, retry the request")
	case errors.Is(err, orchestrator.ErrWorkflowComplete):
		Error(w, http.StatusUnprocessableEntity, ErrCodeWorkflowComplete, err.Error())
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, events.ErrTargetNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, orchestrator.ErrInvalidSpec), errors.Is(err, orchestrator.ErrUnknownClientStatus):
		BadRequest(w, err.Error())
	case errors.Is(err, orchestrator.ErrParentNotProcessing), errors.Is(err, orchestrator.ErrNotPaused):
		Error(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}

// decodeBody читает JSON тело запроса. Пустое тело допустимо,
// если allowEmpty == true.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}
