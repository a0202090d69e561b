package events

import "errors"

// Ошибки диспетчеризации.
var (
	// ErrUnknownHandler — в реестре нет обработчика с таким именем.
	ErrUnknownHandler = errors.New("unknown event handler")

	// ErrUnknownScheduler — стратегия планирования не зарегистрирована.
	ErrUnknownScheduler = errors.New("unknown scheduler")

	// ErrTargetNotFound — узел или workflow для события не найден.
	ErrTargetNotFound = errors.New("event target not found")
)
