package state

import (
	"slices"

	"github.com/groupon/backbeat-sub000/internal/domain"
)

var clientGraph = map[domain.ClientStatus][]domain.ClientStatus{
	domain.ClientStatusPending:    {domain.ClientStatusReady},
	domain.ClientStatusReady:      {domain.ClientStatusReceived},
	domain.ClientStatusReceived:   {domain.ClientStatusProcessing, domain.ClientStatusComplete},
	domain.ClientStatusProcessing: {domain.ClientStatusComplete},
	domain.ClientStatusErrored:    {domain.ClientStatusReady},
	domain.ClientStatusComplete:   {domain.ClientStatusComplete},
}

// Переходы, разрешённые из любого клиентского статуса.
var clientAny = []domain.ClientStatus{domain.ClientStatusErrored}

var serverGraph = map[domain.ServerStatus][]domain.ServerStatus{
	domain.ServerStatusPending:            {domain.ServerStatusReady},
	domain.ServerStatusReady:              {domain.ServerStatusStarted},
	domain.ServerStatusStarted:            {domain.ServerStatusSentToClient, domain.ServerStatusPaused},
	domain.ServerStatusPaused:             {domain.ServerStatusStarted},
	domain.ServerStatusSentToClient:       {domain.ServerStatusProcessingChildren},
	domain.ServerStatusProcessingChildren: {domain.ServerStatusComplete},
	domain.ServerStatusErrored:            {domain.ServerStatusRetrying},
	domain.ServerStatusRetrying:           {domain.ServerStatusReady},
	domain.ServerStatusComplete:           {domain.ServerStatusComplete},
}

// Переходы, разрешённые из любого серверного статуса.
var serverAny = []domain.ServerStatus{
	domain.ServerStatusDeactivated,
	domain.ServerStatusErrored,
	domain.ServerStatusRetrying,
}

// CanTransitionClient проверяет переход клиентского статуса.
func CanTransitionClient(from, to domain.ClientStatus) bool {
	return slices.Contains(clientAny, to) || slices.Contains(clientGraph[from], to)
}

// CanTransitionServer проверяет переход серверного статуса.
func CanTransitionServer(from, to domain.ServerStatus) bool {
	return slices.Contains(serverAny, to) || slices.Contains(serverGraph[from], to)
}
