package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrWorkflowComplete — операция над завершённым workflow.
	ErrWorkflowComplete = errors.New("workflow is complete")

	// ErrInvalidSpec — входные данные не прошли валидацию.
	ErrInvalidSpec = errors.New("invalid spec")

	// ErrUnknownClientStatus — клиент прислал неизвестный статус.
	ErrUnknownClientStatus = errors.New("unknown client status")

	// ErrParentNotProcessing — добавлять детей можно только узлу,
	// который клиент сейчас обрабатывает.
	ErrParentNotProcessing = errors.New("parent node is not processing")

	// ErrNotPaused — resume для workflow, который не на паузе.
	ErrNotPaused = errors.New("workflow is not paused")
)
