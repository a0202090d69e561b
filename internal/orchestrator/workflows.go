package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/state"
)

// WorkflowSpec — ключ workflow: пользователь, subject и decider.
type WorkflowSpec struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	Name    string    `json:"name" validate:"required,max=255"`
	Subject string    `json:"subject" validate:"required"`
	Decider string    `json:"decider" validate:"required,max=255"`
}

// NodeSpec — параметры нового узла (сигнала или ребёнка решения).
type NodeSpec struct {
	Name string `json:"name" validate:"required,max=255"`

	// Mode: blocking (по умолчанию), non_blocking, fire_and_forget.
	Mode string `json:"mode" validate:"omitempty,oneof=blocking non_blocking fire_and_forget"`

	// Type: decision, activity (по умолчанию для детей), flag, timer, signal.
	Type string `json:"type" validate:"omitempty,oneof=decision activity flag timer signal"`

	FiresAt          time.Time       `json:"fires_at"`
	RetriesRemaining int             `json:"retries_remaining" validate:"min=0,max=100"`
	RetryInterval    int             `json:"retry_interval" validate:"min=0"`
	ClientData       json.RawMessage `json:"client_data,omitempty"`
	ClientMetadata   json.RawMessage `json:"client_metadata,omitempty"`
	ParentLinkID     *uuid.UUID      `json:"parent_link_id,omitempty"`
}

// FindOrCreateWorkflow возвращает workflow с ключом (user, subject, decider),
// создавая его при необходимости. created = true, если workflow новый.
func (o *Orchestrator) FindOrCreateWorkflow(ctx context.Context, spec WorkflowSpec) (*domain.Workflow, bool, error) {
	if err := o.check(spec); err != nil {
		return nil, false, err
	}

	if _, err := o.store.Users.GetByID(ctx, spec.UserID); err != nil {
		return nil, false, fmt.Errorf("load user: %w", err)
	}

	wf, err := o.store.Workflows.Find(ctx, spec.UserID, spec.Subject, spec.Decider)
	if err == nil {
		return wf, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("find workflow: %w", err)
	}

	wf = &domain.Workflow{
		ID:        uuid.New(),
		Name:      spec.Name,
		Status:    domain.WorkflowStatusOpen,
		Subject:   spec.Subject,
		Decider:   spec.Decider,
		UserID:    spec.UserID,
		CreatedAt: o.now(),
	}
	err = o.store.Workflows.Create(ctx, wf)
	if errors.Is(err, repo.ErrAlreadyExists) {
		// Параллельный запрос создал его раньше
		existing, findErr := o.store.Workflows.Find(ctx, spec.UserID, spec.Subject, spec.Decider)
		if findErr != nil {
			return nil, false, fmt.Errorf("find workflow: %w", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create workflow: %w", err)
	}

	o.logger.Info("workflow created",
		"workflow_id", wf.ID,
		"name", wf.Name,
		"decider", wf.Decider,
	)
	return wf, true, nil
}

// Workflow возвращает workflow по ID.
func (o *Orchestrator) Workflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	return o.store.Workflows.GetByID(ctx, id)
}

// Signal добавляет в workflow узел верхнего уровня и планирует его запуск.
//
// 1. Узел создаётся в pending/pending и сразу переводится в ready/ready.
// 2. На корне workflow запускается ScheduleNextNode.
//
// Завершённый workflow сигналы не принимает.
func (o *Orchestrator) Signal(ctx context.Context, workflowID uuid.UUID, spec NodeSpec) (*domain.Node, error) {
	if err := o.check(spec); err != nil {
		return nil, err
	}

	wf, err := o.store.Workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.IsComplete() {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowComplete, wf.ID)
	}

	node := o.newNode(wf, nil, spec, domain.LegacyTypeSignal)

	err = o.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := o.store.Nodes.Create(ctx, node); err != nil {
			return fmt.Errorf("create signal node: %w", err)
		}
		if err := o.state.Transition(ctx, node, state.Change{
			Server: domain.ServerStatusReady,
			Client: domain.ClientStatusReady,
		}); err != nil {
			return err
		}
		return o.dispatcher.FireEvent(ctx, events.ScheduleNextNode{}, wf.AsNode())
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("signal received",
		"workflow_id", wf.ID,
		"node_id", node.ID,
		"name", node.Name,
	)
	return node, nil
}

// Pause ставит workflow на паузу. StartNode паркует его узлы в paused.
func (o *Orchestrator) Pause(ctx context.Context, workflowID uuid.UUID) error {
	wf, err := o.store.Workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.IsComplete() {
		return fmt.Errorf("%w: %s", ErrWorkflowComplete, wf.ID)
	}
	if err := o.store.Workflows.UpdateStatus(ctx, wf.ID, domain.WorkflowStatusPaused); err != nil {
		return fmt.Errorf("pause workflow: %w", err)
	}
	o.logger.Info("workflow paused", "workflow_id", wf.ID)
	return nil
}

// Resume снимает паузу и перезапускает припаркованные узлы.
func (o *Orchestrator) Resume(ctx context.Context, workflowID uuid.UUID) error {
	wf, err := o.store.Workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if !wf.IsPaused() {
		return fmt.Errorf("%w: %s", ErrNotPaused, wf.ID)
	}
	if err := o.store.Workflows.UpdateStatus(ctx, wf.ID, domain.WorkflowStatusOpen); err != nil {
		return fmt.Errorf("resume workflow: %w", err)
	}

	paused, err := o.store.Nodes.ListByServerStatus(ctx, wf.ID, domain.ServerStatusPaused)
	if err != nil {
		return fmt.Errorf("list paused nodes: %w", err)
	}
	for i := range paused {
		node := &paused[i]
		if err := o.state.Transition(ctx, node, state.Change{Server: domain.ServerStatusStarted}); err != nil {
			return fmt.Errorf("restart node %s: %w", node.ID, err)
		}
		if err := o.dispatcher.FireEvent(ctx, events.StartNode{}, node); err != nil {
			return fmt.Errorf("restart node %s: %w", node.ID, err)
		}
	}

	o.logger.Info("workflow resumed", "workflow_id", wf.ID, "restarted", len(paused))
	return nil
}

// Complete завершает workflow. После этого сигналы отклоняются.
func (o *Orchestrator) Complete(ctx context.Context, workflowID uuid.UUID) error {
	wf, err := o.store.Workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if err := o.store.Workflows.UpdateStatus(ctx, wf.ID, domain.WorkflowStatusComplete); err != nil {
		return fmt.Errorf("complete workflow: %w", err)
	}
	o.logger.Info("workflow completed", "workflow_id", wf.ID)
	return nil
}

// newNode строит узел из spec в статусах pending/pending.
func (o *Orchestrator) newNode(wf *domain.Workflow, parent *domain.Node, spec NodeSpec, defaultType domain.LegacyType) *domain.Node {
	mode, _ := domain.ParseMode(spec.Mode)

	legacyType := defaultType
	if spec.Type != "" {
		legacyType = domain.LegacyType(spec.Type)
	}

	now := o.now()
	node := &domain.Node{
		ID:                  uuid.New(),
		WorkflowID:          wf.ID,
		UserID:              wf.UserID,
		ParentLinkID:        spec.ParentLinkID,
		Name:                spec.Name,
		Mode:                mode,
		LegacyType:          legacyType,
		CurrentServerStatus: domain.ServerStatusPending,
		CurrentClientStatus: domain.ClientStatusPending,
		FiresAt:             spec.FiresAt,
		RetriesRemaining:    spec.RetriesRemaining,
		RetryInterval:       spec.RetryInterval,
		ClientData:          spec.ClientData,
		ClientMetadata:      spec.ClientMetadata,
		Subject:             wf.Subject,
		Decider:             wf.Decider,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if parent != nil {
		node.ParentID = &parent.ID
	}
	return node
}
