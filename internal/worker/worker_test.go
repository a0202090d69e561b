package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/mq"
	"github.com/groupon/backbeat-sub000/internal/queue"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type nopClient struct{}

func (nopClient) PerformDecision(context.Context, *domain.User, *domain.Node) error { return nil }
func (nopClient) PerformActivity(context.Context, *domain.User, *domain.Node) error { return nil }
func (nopClient) Notify(context.Context, *domain.User, *domain.Node, string, json.RawMessage) error {
	return nil
}

type fixture struct {
	store *repo.Store
	queue *queue.Memory
	w     *Worker
	wf    *domain.Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, _ := repo.NewMemoryStore()
	clock := func() time.Time { return now }

	user := &domain.User{ID: uuid.New(), Name: "client"}
	require.NoError(t, store.Users.Create(ctx, user))
	wf := &domain.Workflow{ID: uuid.New(), Name: "wf", Status: domain.WorkflowStatusOpen, UserID: user.ID, Subject: "s", Decider: "d"}
	require.NoError(t, store.Workflows.Create(ctx, wf))

	q := queue.NewMemory(clock)
	d := events.New(events.Config{Store: store, Client: nopClient{}, Queue: q, Now: clock})

	return &fixture{
		store: store,
		queue: q,
		wf:    wf,
		w:     New(Config{Store: store, Dispatcher: d, Now: clock, PollInterval: time.Minute}),
	}
}

func (f *fixture) node(t *testing.T, server domain.ServerStatus, client domain.ClientStatus) *domain.Node {
	t.Helper()
	n := &domain.Node{
		ID:                  uuid.New(),
		WorkflowID:          f.wf.ID,
		UserID:              f.wf.UserID,
		Name:                "activity",
		Mode:                domain.ModeBlocking,
		LegacyType:          domain.LegacyTypeActivity,
		CurrentServerStatus: server,
		CurrentClientStatus: client,
	}
	require.NoError(t, f.store.Nodes.Create(context.Background(), n))
	return n
}

func callFor(handler string, n *domain.Node) domain.DeferredCall {
	return domain.DeferredCall{
		ID:         uuid.New(),
		Handler:    handler,
		TargetType: domain.TargetNode,
		TargetID:   n.ID,
		FireAt:     now,
	}
}

func TestProcess_RunsHandler(t *testing.T) {
	f := newFixture(t)
	n := f.node(t, domain.ServerStatusStarted, domain.ClientStatusReady)

	require.NoError(t, f.w.Process(context.Background(), callFor(events.NameStartNode, n)))

	fresh, err := f.store.Nodes.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStatusSentToClient, fresh.CurrentServerStatus)
	assert.Equal(t, domain.ClientStatusReceived, fresh.CurrentClientStatus)
}

func TestProcess_WorkflowTarget(t *testing.T) {
	f := newFixture(t)
	n := f.node(t, domain.ServerStatusReady, domain.ClientStatusReady)

	call := domain.DeferredCall{
		ID:         uuid.New(),
		Handler:    events.NameScheduleNextNode,
		TargetType: domain.TargetWorkflow,
		TargetID:   f.wf.ID,
		FireAt:     now,
	}
	require.NoError(t, f.w.Process(context.Background(), call))

	fresh, err := f.store.Nodes.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStatusStarted, fresh.CurrentServerStatus)
	assert.Equal(t, 1, f.queue.Len(), "StartNode is scheduled")
}

func TestProcess_DropsOutdatedCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// StartNode для узла, который уже у клиента: недопустимый переход
	sent := f.node(t, domain.ServerStatusSentToClient, domain.ClientStatusReceived)
	assert.NoError(t, f.w.Process(ctx, callFor(events.NameStartNode, sent)))

	// Узел деактивирован, пока вызов ждал
	gone := f.node(t, domain.ServerStatusDeactivated, domain.ClientStatusReady)
	assert.NoError(t, f.w.Process(ctx, callFor(events.NameStartNode, gone)))

	// Узла больше нет
	missing := &domain.Node{ID: uuid.New()}
	assert.NoError(t, f.w.Process(ctx, callFor(events.NameStartNode, missing)))
}

func TestProcess_MalformedCall(t *testing.T) {
	f := newFixture(t)
	n := f.node(t, domain.ServerStatusReady, domain.ClientStatusReady)

	err := f.w.Process(context.Background(), callFor("explode", n))
	assert.ErrorIs(t, err, ErrMalformedCall)

	bad := callFor(events.NameClientError, n)
	bad.Args = json.RawMessage(`"not an object"`)
	assert.ErrorIs(t, f.w.Process(context.Background(), bad), ErrMalformedCall)
}

func TestHandleEventDue(t *testing.T) {
	f := newFixture(t)
	n := f.node(t, domain.ServerStatusStarted, domain.ClientStatusReady)
	ctx := context.Background()

	msg, err := mq.NewDeferredCallMessage(callFor(events.NameStartNode, n))
	require.NoError(t, err)
	require.NoError(t, f.w.handleEventDue(ctx, &mq.Delivery{Message: *msg}))

	bad, err := mq.NewDeferredCallMessage(callFor("explode", n))
	require.NoError(t, err)
	assert.ErrorIs(t, f.w.handleEventDue(ctx, &mq.Delivery{Message: *bad}), mq.ErrPermanent)

	garbage := &mq.Delivery{Message: mq.Message{Payload: json.RawMessage(`[]`)}}
	assert.ErrorIs(t, f.w.handleEventDue(ctx, garbage), mq.ErrPermanent)
}

func TestPoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.node(t, domain.ServerStatusStarted, domain.ClientStatusReady)

	due := callFor(events.NameStartNode, n)
	future := callFor(events.NameStartNode, n)
	future.FireAt = now.Add(time.Hour)
	require.NoError(t, f.store.DeferredCalls.Create(ctx, &due))
	require.NoError(t, f.store.DeferredCalls.Create(ctx, &future))

	f.w.poll(ctx)

	fresh, err := f.store.Nodes.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStatusSentToClient, fresh.CurrentServerStatus)

	count, err := f.store.DeferredCalls.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPoll_KeepsFailedCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Узел без workflow: StartNode падает на загрузке workflow.
	orphan := &domain.Node{
		ID:                  uuid.New(),
		WorkflowID:          uuid.New(),
		Name:                "orphan",
		Mode:                domain.ModeBlocking,
		LegacyType:          domain.LegacyTypeActivity,
		CurrentServerStatus: domain.ServerStatusStarted,
		CurrentClientStatus: domain.ClientStatusReady,
	}
	require.NoError(t, f.store.Nodes.Create(ctx, orphan))

	failing := callFor(events.NameStartNode, orphan)
	require.NoError(t, f.store.DeferredCalls.Create(ctx, &failing))

	f.w.poll(ctx)

	count, err := f.store.DeferredCalls.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// До конца аренды вызов не выдаётся повторно, после неё выдаётся.
	leased, err := f.store.DeferredCalls.LeaseDue(ctx, now, now, 10)
	require.NoError(t, err)
	assert.Empty(t, leased)

	leased, err = f.store.DeferredCalls.LeaseDue(ctx, now.Add(time.Minute), now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, failing.ID, leased[0].ID)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.w.Start(context.Background()))
	f.w.Stop()

	assert.True(t, f.w.IsStopped())
	assert.ErrorIs(t, f.w.Start(context.Background()), ErrWorkerStopped)
}
