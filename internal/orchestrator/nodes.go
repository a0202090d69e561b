package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/state"
)

// ClientUpdate — статус, который клиент сообщает об узле.
type ClientUpdate string

// Статусы, которые принимает UpdateClientStatus.
const (
	ClientUpdateProcessing  ClientUpdate = "processing"
	ClientUpdateCompleted   ClientUpdate = "completed"
	ClientUpdateErrored     ClientUpdate = "errored"
	ClientUpdateDeactivated ClientUpdate = "deactivated"
)

// childrenSpec оборачивает список детей для валидации через dive.
type childrenSpec struct {
	Nodes []NodeSpec `validate:"required,min=1,dive"`
}

// AddChildren добавляет детей узлу, который клиент сейчас обрабатывает
// (решение decider'а). Дети создаются в pending/pending и станут ready,
// когда клиент сообщит completed.
func (o *Orchestrator) AddChildren(ctx context.Context, parentID uuid.UUID, specs []NodeSpec) ([]domain.Node, error) {
	if err := o.check(childrenSpec{Nodes: specs}); err != nil {
		return nil, err
	}

	parent, err := o.store.Nodes.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.CurrentClientStatus != domain.ClientStatusProcessing {
		return nil, fmt.Errorf("%w: %s is %s", ErrParentNotProcessing, parent.ID, parent.CurrentClientStatus)
	}

	wf, err := o.store.Workflows.GetByID(ctx, parent.WorkflowID)
	if err != nil {
		return nil, err
	}
	if wf.IsComplete() {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowComplete, wf.ID)
	}

	created := make([]domain.Node, 0, len(specs))
	err = o.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, spec := range specs {
			node := o.newNode(wf, parent, spec, domain.LegacyTypeActivity)
			if err := o.store.Nodes.Create(ctx, node); err != nil {
				return fmt.Errorf("create child %q: %w", spec.Name, err)
			}
			created = append(created, *node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("children added",
		"workflow_id", wf.ID,
		"parent_id", parent.ID,
		"count", len(created),
	)
	return created, nil
}

// UpdateClientStatus применяет статус, присланный клиентом. Обработчик
// выполняется сразу; дальнейшие шаги каскада идут через очередь.
func (o *Orchestrator) UpdateClientStatus(ctx context.Context, nodeID uuid.UUID, status ClientUpdate, response json.RawMessage) error {
	var h events.Handler
	switch status {
	case ClientUpdateProcessing:
		h = events.ClientProcessing{}
	case ClientUpdateCompleted:
		h = events.ClientComplete{}
	case ClientUpdateErrored:
		h = events.ClientError{Response: response}
	case ClientUpdateDeactivated:
		h = events.DeactivatePreviousNodes{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownClientStatus, status)
	}

	node, err := o.store.Nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	return o.dispatcher.FireEventWith(ctx, h, node, events.PerformEvent)
}

// Reset деактивирует всех потомков узла.
func (o *Orchestrator) Reset(ctx context.Context, nodeID uuid.UUID) error {
	node, err := o.store.Nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	return o.dispatcher.FireEventWith(ctx, events.ResetNode{}, node, events.PerformEvent)
}

// Retry немедленно повторяет узел с ошибкой клиента.
func (o *Orchestrator) Retry(ctx context.Context, nodeID uuid.UUID) error {
	node, err := o.store.Nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	return o.dispatcher.FireEventWith(ctx, events.RetryNode{}, node, events.PerformEvent)
}

// Deactivate деактивирует узел вместе с потомками. Деактивированный узел
// больше не получает событий.
func (o *Orchestrator) Deactivate(ctx context.Context, nodeID uuid.UUID) error {
	node, err := o.store.Nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.IsDeactivated() {
		return nil
	}

	if err := o.dispatcher.FireEventWith(ctx, events.ResetNode{}, node, events.PerformEvent); err != nil {
		return err
	}
	if err := o.state.Force(ctx, node, state.Change{Server: domain.ServerStatusDeactivated}); err != nil {
		return err
	}

	o.logger.Info("node deactivated", "node_id", node.ID, "workflow_id", node.WorkflowID)
	return nil
}
