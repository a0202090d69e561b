package worker

import "errors"

// Ошибки воркера.
var (
	// ErrMalformedCall — вызов нельзя выполнить ни сейчас, ни позже
	// (неизвестный обработчик или битые аргументы).
	ErrMalformedCall = errors.New("malformed deferred call")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
