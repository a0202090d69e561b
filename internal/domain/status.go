package domain

// ServerStatus — серверное измерение статуса узла.
//
// Жизненный цикл:
//
//	pending → ready → started → sent_to_client → processing_children → complete
//	                        ↘ paused → started
//	(из любого) → deactivated | errored | retrying;  errored → retrying → ready
type ServerStatus string

const (
	// ServerStatusPending — узел создан, но ещё не допущен к запуску.
	ServerStatusPending ServerStatus = "pending"

	// ServerStatusReady — узел готов к запуску.
	ServerStatusReady ServerStatus = "ready"

	// ServerStatusStarted — узел выбран планировщиком для запуска.
	ServerStatusStarted ServerStatus = "started"

	// ServerStatusPaused — запуск отложен, workflow на паузе.
	ServerStatusPaused ServerStatus = "paused"

	// ServerStatusSentToClient — узел передан клиенту.
	ServerStatusSentToClient ServerStatus = "sent_to_client"

	// ServerStatusProcessingChildren — клиент завершил работу, обрабатываются дочерние узлы.
	ServerStatusProcessingChildren ServerStatus = "processing_children"

	// ServerStatusComplete — узел и все его дети завершены.
	ServerStatusComplete ServerStatus = "complete"

	// ServerStatusErrored — серверная ошибка.
	ServerStatusErrored ServerStatus = "errored"

	// ServerStatusRetrying — промежуточный статус перед повторным запуском.
	ServerStatusRetrying ServerStatus = "retrying"

	// ServerStatusDeactivated — узел отменён; события по нему больше не выполняются.
	ServerStatusDeactivated ServerStatus = "deactivated"
)

// IsTerminal возвращает true, если статус финальный.
func (s ServerStatus) IsTerminal() bool {
	switch s {
	case ServerStatusComplete, ServerStatusDeactivated:
		return true
	default:
		return false
	}
}

// ClientStatus — клиентское измерение статуса узла.
//
// Жизненный цикл:
//
//	pending → ready → received → processing → complete
//	                          ↘ complete
//	(из любого) → errored;  errored → ready
type ClientStatus string

const (
	// ClientStatusPending — узел ещё не готов для клиента.
	ClientStatusPending ClientStatus = "pending"

	// ClientStatusReady — узел готов к отправке клиенту.
	ClientStatusReady ClientStatus = "ready"

	// ClientStatusReceived — клиент получил узел.
	ClientStatusReceived ClientStatus = "received"

	// ClientStatusProcessing — клиент сообщил, что работает над узлом.
	ClientStatusProcessing ClientStatus = "processing"

	// ClientStatusComplete — клиент завершил работу.
	ClientStatusComplete ClientStatus = "complete"

	// ClientStatusErrored — клиент сообщил об ошибке или вызов клиента не удался.
	ClientStatusErrored ClientStatus = "errored"
)

// StatusType — измерение статуса в журнале изменений.
// Значения совпадают с именами колонок узла.
type StatusType string

const (
	StatusTypeServer StatusType = "current_server_status"
	StatusTypeClient StatusType = "current_client_status"
)

// Mode — режим узла относительно следующих по seq соседей.
type Mode string

const (
	// ModeBlocking — следующие соседи ждут завершения узла.
	ModeBlocking Mode = "blocking"

	// ModeNonBlocking — следующие соседи запускаются сразу, но родитель ждёт узел.
	ModeNonBlocking Mode = "non_blocking"

	// ModeFireAndForget — никто не ждёт завершения узла.
	ModeFireAndForget Mode = "fire_and_forget"
)

// ParseMode парсит строку в Mode. Пустая строка означает blocking.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeBlocking:
		return ModeBlocking, true
	case ModeNonBlocking, ModeFireAndForget:
		return Mode(s), true
	default:
		return "", false
	}
}

// LegacyType — тип узла; определяет, какой endpoint клиента вызывается.
type LegacyType string

const (
	LegacyTypeDecision LegacyType = "decision"
	LegacyTypeActivity LegacyType = "activity"
	LegacyTypeFlag     LegacyType = "flag"
	LegacyTypeTimer    LegacyType = "timer"
	LegacyTypeSignal   LegacyType = "signal"
)

// WorkflowStatus — статус workflow.
//
//	open ⇄ paused
//	open → complete
type WorkflowStatus string

const (
	// WorkflowStatusOpen — workflow принимает сигналы и выполняет узлы.
	WorkflowStatusOpen WorkflowStatus = "open"

	// WorkflowStatusPaused — новые узлы не отправляются клиенту.
	WorkflowStatusPaused WorkflowStatus = "paused"

	// WorkflowStatusComplete — workflow завершён, сигналы отклоняются.
	WorkflowStatusComplete WorkflowStatus = "complete"
)
