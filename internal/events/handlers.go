package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/state"
	"github.com/groupon/backbeat-sub000/internal/tree"
)

// Имена обработчиков.
const (
	NameStartNode               = "start_node"
	NameClientProcessing        = "client_processing"
	NameClientComplete          = "client_complete"
	NameMarkChildrenReady       = "mark_children_ready"
	NameScheduleNextNode        = "schedule_next_node"
	NameNodeComplete            = "node_complete"
	NameServerError             = "server_error"
	NameClientError             = "client_error"
	NameRetryNode               = "retry_node"
	NameDeactivatePreviousNodes = "deactivate_previous_nodes"
	NameResetNode               = "reset_node"
)

// StartNode отправляет узел клиенту.
//
// Если workflow на паузе, узел паркуется в server=paused.
// Иначе server→sent_to_client, client→received, затем вызов клиента.
// Узлы без действия клиента сразу получают ClientComplete,
// ошибка вызова превращается в ClientError.
type StartNode struct{}

func (StartNode) Name() string                    { return NameStartNode }
func (StartNode) DefaultScheduler() SchedulerKind { return ScheduleAt }
func (StartNode) Args() json.RawMessage           { return nil }

func (StartNode) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	wf, err := d.workflow(ctx, node.WorkflowID)
	if err != nil {
		return err
	}

	if wf.IsPaused() {
		return d.state.Transition(ctx, node, state.Change{Server: domain.ServerStatusPaused})
	}

	if err := d.state.Transition(ctx, node, state.Change{
		Server: domain.ServerStatusSentToClient,
		Client: domain.ClientStatusReceived,
	}); err != nil {
		return err
	}

	if !node.NeedsClientAction() {
		return d.FireEvent(ctx, ClientComplete{}, node)
	}

	user, err := d.user(ctx, node.UserID)
	if err != nil {
		return err
	}

	if node.LegacyType == domain.LegacyTypeActivity {
		err = d.client.PerformActivity(ctx, user, node)
	} else {
		err = d.client.PerformDecision(ctx, user, node)
	}
	if err != nil {
		d.logger.Warn("client call failed",
			"node_id", node.ID,
			"legacy_type", node.LegacyType,
			"error", err,
		)
		return d.FireEvent(ctx, ClientError{Response: responseOf(err)}, node)
	}
	return nil
}

// ClientProcessing фиксирует, что клиент работает над узлом.
type ClientProcessing struct{}

func (ClientProcessing) Name() string                    { return NameClientProcessing }
func (ClientProcessing) DefaultScheduler() SchedulerKind { return PerformEvent }
func (ClientProcessing) Args() json.RawMessage           { return nil }

func (ClientProcessing) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	return d.state.Transition(ctx, node, state.Change{Client: domain.ClientStatusProcessing})
}

// ClientComplete фиксирует завершение работы клиента и переходит к детям.
// При ошибке каскада статусы узла откатываются.
type ClientComplete struct{}

func (ClientComplete) Name() string                    { return NameClientComplete }
func (ClientComplete) DefaultScheduler() SchedulerKind { return PerformEvent }
func (ClientComplete) Args() json.RawMessage           { return nil }

func (ClientComplete) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	return d.state.WithRollback(ctx, node, state.Change{}, func(ctx context.Context) error {
		if err := d.state.Transition(ctx, node, state.Change{
			Client: domain.ClientStatusComplete,
			Server: domain.ServerStatusProcessingChildren,
		}); err != nil {
			return err
		}
		return d.FireEvent(ctx, MarkChildrenReady{}, node)
	})
}

// MarkChildrenReady переводит всех активных детей в ready/ready.
type MarkChildrenReady struct{}

func (MarkChildrenReady) Name() string                    { return NameMarkChildrenReady }
func (MarkChildrenReady) DefaultScheduler() SchedulerKind { return PerformEvent }
func (MarkChildrenReady) Args() json.RawMessage           { return nil }

func (MarkChildrenReady) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	children, err := d.children(ctx, node)
	if err != nil {
		return err
	}

	for i := range children {
		child := &children[i]
		if child.IsDeactivated() {
			continue
		}
		if err := d.state.Force(ctx, child, state.Change{
			Server: domain.ServerStatusReady,
			Client: domain.ClientStatusReady,
		}); err != nil {
			return fmt.Errorf("mark child %s ready: %w", child.ID, err)
		}
	}

	return d.FireEvent(ctx, ScheduleNextNode{}, node)
}

// ScheduleNextNode запускает готовых детей в порядке seq.
//
// Незавершённый blocking-ребёнок — барьер: после него запускаются только
// non_blocking и fire_and_forget соседи, а следующий blocking-ребёнок и
// всё за ним ждут. Errored blocking-ребёнок тоже держит барьер.
// Когда все ожидаемые дети завершены и нет незавершённых связанных
// узлов, узел получает NodeComplete. Проигранные гонки не ошибка:
// другой обработчик уже запустил ребёнка.
type ScheduleNextNode struct{}

func (ScheduleNextNode) Name() string                    { return NameScheduleNextNode }
func (ScheduleNextNode) DefaultScheduler() SchedulerKind { return ScheduleNow }
func (ScheduleNextNode) Args() json.RawMessage           { return nil }

func (ScheduleNextNode) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	children, err := d.children(ctx, node)
	if err != nil {
		return err
	}

	blocked := false
	for i := range children {
		child := &children[i]
		if child.IsDeactivated() || child.IsComplete() {
			continue
		}

		if child.IsBlocking() && blocked {
			break
		}

		if child.CurrentServerStatus == domain.ServerStatusReady {
			err := d.state.WithRollback(ctx, child, state.Change{Server: domain.ServerStatusReady}, func(ctx context.Context) error {
				if err := d.state.Transition(ctx, child, state.Change{Server: domain.ServerStatusStarted}); err != nil {
					return err
				}
				return d.FireEvent(ctx, StartNode{}, child)
			})
			switch {
			case errors.Is(err, state.ErrStaleStatusChange):
				d.logger.Info("child already scheduled by another worker",
					"node_id", node.ID,
					"child_id", child.ID,
				)
			case err != nil:
				return fmt.Errorf("start child %s: %w", child.ID, err)
			}
		}

		if child.IsBlocking() {
			blocked = true
		}
	}

	if !awaitsChildren(children) && (node.IsRoot() || node.CurrentServerStatus == domain.ServerStatusProcessingChildren) {
		outstanding, err := d.hasOutstandingLinks(ctx, node)
		if err != nil {
			return err
		}
		if !outstanding {
			return d.FireEvent(ctx, NodeComplete{}, node)
		}
	}
	return nil
}

// awaitsChildren возвращает true, если есть незавершённый ребёнок,
// которого родитель обязан дождаться.
func awaitsChildren(children []domain.Node) bool {
	for i := range children {
		c := &children[i]
		if c.IsDeactivated() || c.IsFireAndForget() {
			continue
		}
		if !c.IsComplete() {
			return true
		}
	}
	return false
}

// hasOutstandingLinks проверяет узлы, связанные с node через parent_link_id.
func (d *Dispatcher) hasOutstandingLinks(ctx context.Context, node *domain.Node) (bool, error) {
	if node.IsRoot() {
		return false, nil
	}
	linked, err := d.store.Nodes.ListLinkedTo(ctx, node.ID)
	if err != nil {
		return false, fmt.Errorf("list linked nodes: %w", err)
	}
	for i := range linked {
		if !linked[i].IsComplete() && !linked[i].IsDeactivated() {
			return true, nil
		}
	}
	return false, nil
}

// NodeComplete завершает узел и уведомляет родителя и связанный узел.
// Для корня workflow ничего не делает.
type NodeComplete struct{}

func (NodeComplete) Name() string                    { return NameNodeComplete }
func (NodeComplete) DefaultScheduler() SchedulerKind { return PerformEvent }
func (NodeComplete) Args() json.RawMessage           { return nil }

func (NodeComplete) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	if node.IsRoot() {
		return nil
	}

	if err := d.state.Transition(ctx, node, state.Change{Server: domain.ServerStatusComplete}); err != nil {
		return err
	}

	for _, id := range node.Notifies() {
		target, err := d.LoadTarget(ctx, id)
		if err != nil {
			return err
		}
		if err := d.FireEvent(ctx, ScheduleNextNode{}, target); err != nil {
			return err
		}
	}
	return nil
}

// errorArgs — аргументы обработчиков ошибок.
type errorArgs struct {
	Response json.RawMessage `json:"response,omitempty"`
}

// ServerError переводит узел в server=errored и уведомляет клиента.
// Автоматического повтора нет.
type ServerError struct {
	Response json.RawMessage
}

func (ServerError) Name() string                    { return NameServerError }
func (ServerError) DefaultScheduler() SchedulerKind { return PerformEvent }

func (h ServerError) Args() json.RawMessage {
	b, _ := json.Marshal(errorArgs{Response: h.Response})
	return b
}

func (h ServerError) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	if err := d.state.Transition(ctx, node, state.Change{
		Server:   domain.ServerStatusErrored,
		Response: h.Response,
	}); err != nil {
		return err
	}
	d.notify(ctx, node, "server error", h.Response)
	return nil
}

// ClientError переводит узел в client=errored.
// Если повторы остались, уменьшает счётчик и планирует RetryNode,
// иначе уведомляет клиента.
type ClientError struct {
	Response json.RawMessage
}

func (ClientError) Name() string                    { return NameClientError }
func (ClientError) DefaultScheduler() SchedulerKind { return PerformEvent }

func (h ClientError) Args() json.RawMessage {
	b, _ := json.Marshal(errorArgs{Response: h.Response})
	return b
}

// Переход в errored, уменьшение счётчика и постановка RetryNode
// фиксируются одной транзакцией: узел не остаётся в errored без
// запланированного повтора.
func (h ClientError) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	before := *node
	retry := false

	err := d.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := d.state.Transition(ctx, node, state.Change{
			Client:   domain.ClientStatusErrored,
			Response: h.Response,
		}); err != nil {
			return err
		}
		if node.RetriesRemaining <= 0 {
			return nil
		}

		remaining, err := d.store.Nodes.DecrementRetries(ctx, node.ID)
		if err != nil {
			return fmt.Errorf("decrement retries: %w", err)
		}
		node.RetriesRemaining = remaining
		retry = true
		return d.FireEvent(ctx, RetryNode{}, node)
	})
	if err != nil {
		*node = before
		return err
	}

	if !retry {
		d.notify(ctx, node, "error", h.Response)
	}
	return nil
}

// RetryNode возвращает узел в ready/ready через промежуточный retrying,
// сбрасывает его детей и просит родителя перепланировать.
type RetryNode struct{}

func (RetryNode) Name() string                    { return NameRetryNode }
func (RetryNode) DefaultScheduler() SchedulerKind { return ScheduleRetry }
func (RetryNode) Args() json.RawMessage           { return nil }

func (RetryNode) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	if err := d.state.Transition(ctx, node, state.Change{
		Client: domain.ClientStatusReady,
		Server: domain.ServerStatusRetrying,
	}); err != nil {
		return err
	}
	if err := d.state.Transition(ctx, node, state.Change{Server: domain.ServerStatusReady}); err != nil {
		return err
	}

	if err := d.FireEvent(ctx, ResetNode{}, node); err != nil {
		return err
	}

	parent, err := d.LoadTarget(ctx, node.ParentOrWorkflow())
	if err != nil {
		return err
	}
	return d.FireEvent(ctx, ScheduleNextNode{}, parent)
}

// DeactivatePreviousNodes деактивирует все узлы workflow с меньшим seq.
type DeactivatePreviousNodes struct{}

func (DeactivatePreviousNodes) Name() string                    { return NameDeactivatePreviousNodes }
func (DeactivatePreviousNodes) DefaultScheduler() SchedulerKind { return PerformEvent }
func (DeactivatePreviousNodes) Args() json.RawMessage           { return nil }

func (DeactivatePreviousNodes) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	wf, err := d.workflow(ctx, node.WorkflowID)
	if err != nil {
		return err
	}
	t, err := tree.Load(ctx, d.store.Nodes, wf)
	if err != nil {
		return err
	}

	for n := range t.Traverse(false) {
		if n.Seq >= node.Seq || n.IsDeactivated() {
			continue
		}
		if err := d.state.Force(ctx, n, state.Change{Server: domain.ServerStatusDeactivated}); err != nil {
			return fmt.Errorf("deactivate node %s: %w", n.ID, err)
		}
	}
	return nil
}

// ResetNode деактивирует всех потомков узла. Статус самого узла не меняется.
type ResetNode struct{}

func (ResetNode) Name() string                    { return NameResetNode }
func (ResetNode) DefaultScheduler() SchedulerKind { return PerformEvent }
func (ResetNode) Args() json.RawMessage           { return nil }

func (ResetNode) Handle(ctx context.Context, d *Dispatcher, node *domain.Node) error {
	wf, err := d.workflow(ctx, node.WorkflowID)
	if err != nil {
		return err
	}
	t, err := tree.Load(ctx, d.store.Nodes, wf)
	if err != nil {
		return err
	}

	for n := range t.Subtree(node.ID, false) {
		if n.IsDeactivated() {
			continue
		}
		if err := d.state.Force(ctx, n, state.Change{Server: domain.ServerStatusDeactivated}); err != nil {
			return fmt.Errorf("deactivate descendant %s: %w", n.ID, err)
		}
	}
	return nil
}

// notify отправляет уведомление клиенту. Ошибка только логируется:
// уведомление не меняет состояние узла.
func (d *Dispatcher) notify(ctx context.Context, node *domain.Node, message string, body json.RawMessage) {
	user, err := d.user(ctx, node.UserID)
	if err != nil {
		d.logger.Error("notify client: load user", "node_id", node.ID, "error", err)
		return
	}
	if err := d.client.Notify(ctx, user, node, message, body); err != nil {
		d.logger.Error("notify client failed", "node_id", node.ID, "error", err)
	}
}
