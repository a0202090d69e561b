package config

import "errors"

var (
	// ErrInvalidConfig — конфигурация не прошла проверку.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidEnv — переменная окружения не разбирается.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
