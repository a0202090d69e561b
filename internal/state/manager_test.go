package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *repo.Store, *repo.Memory) {
	t.Helper()
	store, mem := repo.NewMemoryStore()
	return New(Config{Store: store}), store, mem
}

func createNode(t *testing.T, store *repo.Store, server domain.ServerStatus, client domain.ClientStatus) *domain.Node {
	t.Helper()
	node := &domain.Node{
		ID:                  uuid.New(),
		WorkflowID:          uuid.New(),
		Name:                "test",
		Mode:                domain.ModeBlocking,
		LegacyType:          domain.LegacyTypeActivity,
		CurrentServerStatus: server,
		CurrentClientStatus: client,
		CreatedAt:           time.Now(),
	}
	require.NoError(t, store.Nodes.Create(context.Background(), node))
	return node
}

func TestGraphs(t *testing.T) {
	tests := []struct {
		from, to domain.ClientStatus
		ok       bool
	}{
		{domain.ClientStatusPending, domain.ClientStatusReady, true},
		{domain.ClientStatusReady, domain.ClientStatusReceived, true},
		{domain.ClientStatusReceived, domain.ClientStatusProcessing, true},
		{domain.ClientStatusReceived, domain.ClientStatusComplete, true},
		{domain.ClientStatusProcessing, domain.ClientStatusComplete, true},
		{domain.ClientStatusErrored, domain.ClientStatusReady, true},
		{domain.ClientStatusComplete, domain.ClientStatusComplete, true},
		{domain.ClientStatusComplete, domain.ClientStatusErrored, true},
		{domain.ClientStatusPending, domain.ClientStatusComplete, false},
		{domain.ClientStatusReady, domain.ClientStatusProcessing, false},
		{domain.ClientStatusComplete, domain.ClientStatusReady, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransitionClient(tt.from, tt.to), "client %s -> %s", tt.from, tt.to)
	}

	serverTests := []struct {
		from, to domain.ServerStatus
		ok       bool
	}{
		{domain.ServerStatusPending, domain.ServerStatusReady, true},
		{domain.ServerStatusReady, domain.ServerStatusStarted, true},
		{domain.ServerStatusStarted, domain.ServerStatusSentToClient, true},
		{domain.ServerStatusStarted, domain.ServerStatusPaused, true},
		{domain.ServerStatusPaused, domain.ServerStatusStarted, true},
		{domain.ServerStatusSentToClient, domain.ServerStatusProcessingChildren, true},
		{domain.ServerStatusProcessingChildren, domain.ServerStatusComplete, true},
		{domain.ServerStatusErrored, domain.ServerStatusRetrying, true},
		{domain.ServerStatusRetrying, domain.ServerStatusReady, true},
		{domain.ServerStatusComplete, domain.ServerStatusDeactivated, true},
		{domain.ServerStatusSentToClient, domain.ServerStatusRetrying, true},
		{domain.ServerStatusPending, domain.ServerStatusStarted, false},
		{domain.ServerStatusReady, domain.ServerStatusComplete, false},
		{domain.ServerStatusDeactivated, domain.ServerStatusReady, false},
	}
	for _, tt := range serverTests {
		assert.Equal(t, tt.ok, CanTransitionServer(tt.from, tt.to), "server %s -> %s", tt.from, tt.to)
	}
}

func TestTransition_Valid(t *testing.T) {
	m, store, mem := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusStarted, domain.ClientStatusReady)

	err := m.Transition(ctx, node, Change{
		Server: domain.ServerStatusSentToClient,
		Client: domain.ClientStatusReceived,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ServerStatusSentToClient, node.CurrentServerStatus)
	assert.Equal(t, domain.ClientStatusReceived, node.CurrentClientStatus)

	stored, err := store.Nodes.GetByID(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, node.Status(), stored.Status())

	// Одна запись на каждое измерение
	changes, err := store.StatusChanges.ListByNode(ctx, node.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, 2, mem.StatusChangeCount())

	byType := map[domain.StatusType]domain.StatusChange{}
	for _, c := range changes {
		byType[c.StatusType] = c
	}
	assert.Equal(t, "started", byType[domain.StatusTypeServer].FromStatus)
	assert.Equal(t, string(stored.CurrentServerStatus), byType[domain.StatusTypeServer].ToStatus)
	assert.Equal(t, "ready", byType[domain.StatusTypeClient].FromStatus)
	assert.Equal(t, string(stored.CurrentClientStatus), byType[domain.StatusTypeClient].ToStatus)
}

func TestTransition_SingleDimension(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusSentToClient, domain.ClientStatusReceived)

	require.NoError(t, m.Transition(ctx, node, Change{Client: domain.ClientStatusProcessing}))

	changes, err := store.StatusChanges.ListByNode(ctx, node.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatusTypeClient, changes[0].StatusType)
	assert.Equal(t, domain.ServerStatusSentToClient, node.CurrentServerStatus)
}

func TestTransition_InvalidClient(t *testing.T) {
	m, store, mem := newTestManager(t)
	node := createNode(t, store, domain.ServerStatusReady, domain.ClientStatusPending)

	err := m.Transition(context.Background(), node, Change{Client: domain.ClientStatusComplete})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStatusChange))

	var invalid *InvalidClientStatusChange
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, domain.ClientStatusPending, invalid.CurrentStatus)
	assert.Equal(t, domain.ClientStatusComplete, invalid.AttemptedStatus)

	assert.Equal(t, 0, mem.StatusChangeCount())
}

func TestTransition_InvalidServer(t *testing.T) {
	m, store, mem := newTestManager(t)
	node := createNode(t, store, domain.ServerStatusPending, domain.ClientStatusPending)

	// Клиентское измерение корректно, серверное — нет: не пишется ничего
	err := m.Transition(context.Background(), node, Change{
		Server: domain.ServerStatusComplete,
		Client: domain.ClientStatusReady,
	})
	require.Error(t, err)

	var invalid *InvalidServerStatusChange
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Message, "pending")
	assert.Equal(t, 0, mem.StatusChangeCount())

	stored, err := m.store.Nodes.GetByID(context.Background(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusPending, stored.CurrentClientStatus)
}

func TestTransition_Stale(t *testing.T) {
	m, store, mem := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusReady, domain.ClientStatusReady)

	// Другой обработчик уже перевёл узел
	require.NoError(t, store.Nodes.SetStatus(ctx, node.ID, domain.Statuses{
		Server: domain.ServerStatusStarted,
		Client: domain.ClientStatusReady,
	}))

	err := m.Transition(ctx, node, Change{Server: domain.ServerStatusStarted})
	assert.ErrorIs(t, err, ErrStaleStatusChange)
	assert.Equal(t, 0, mem.StatusChangeCount())
}

func TestTransition_ConcurrentSingleWinner(t *testing.T) {
	m, store, mem := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusReady, domain.ClientStatusReady)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range racers {
		// Каждый участник видит одинаковое наблюдённое состояние
		copyNode := *node
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Transition(ctx, &copyNode, Change{Server: domain.ServerStatusStarted})
		}()
	}
	wg.Wait()

	var ok, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStaleStatusChange):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, stale)
	assert.Equal(t, 1, mem.StatusChangeCount())
}

func TestTransition_RootIsNoop(t *testing.T) {
	m, _, mem := newTestManager(t)
	wf := &domain.Workflow{ID: uuid.New(), Status: domain.WorkflowStatusOpen}
	root := wf.AsNode()

	require.NoError(t, m.Transition(context.Background(), root, Change{Server: domain.ServerStatusComplete}))
	require.NoError(t, m.Force(context.Background(), root, Change{Server: domain.ServerStatusDeactivated}))
	assert.Equal(t, domain.ServerStatusProcessingChildren, root.CurrentServerStatus)
	assert.Equal(t, 0, mem.StatusChangeCount())
}

func TestForce_SkipsValidation(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusComplete, domain.ClientStatusComplete)

	require.NoError(t, m.Force(ctx, node, Change{
		Server: domain.ServerStatusReady,
		Client: domain.ClientStatusReady,
	}))
	assert.Equal(t, domain.ServerStatusReady, node.CurrentServerStatus)

	changes, err := store.StatusChanges.ListByNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestWithRollback_RestoresOnError(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusSentToClient, domain.ClientStatusReceived)

	boom := errors.New("boom")
	err := m.WithRollback(ctx, node, Change{}, func(ctx context.Context) error {
		if err := m.Transition(ctx, node, Change{
			Client: domain.ClientStatusComplete,
			Server: domain.ServerStatusProcessingChildren,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.Nodes.GetByID(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStatusSentToClient, stored.CurrentServerStatus)
	assert.Equal(t, domain.ClientStatusReceived, stored.CurrentClientStatus)
}

func TestWithRollback_Fallback(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusReady, domain.ClientStatusReady)

	err := m.WithRollback(ctx, node, Change{Server: domain.ServerStatusReady}, func(ctx context.Context) error {
		if err := m.Transition(ctx, node, Change{Server: domain.ServerStatusStarted}); err != nil {
			return err
		}
		return errors.New("client unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, domain.ServerStatusReady, node.CurrentServerStatus)
}

func TestWithRollback_InvalidNotRolledBack(t *testing.T) {
	m, store, mem := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusPending, domain.ClientStatusPending)

	err := m.WithRollback(ctx, node, Change{Server: domain.ServerStatusErrored}, func(ctx context.Context) error {
		return m.Transition(ctx, node, Change{Server: domain.ServerStatusComplete})
	})
	assert.ErrorIs(t, err, ErrInvalidStatusChange)
	assert.Equal(t, domain.ServerStatusPending, node.CurrentServerStatus)
	assert.Equal(t, 0, mem.StatusChangeCount())
}

func TestWithRollback_StaleCascadeRestoresNode(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusSentToClient, domain.ClientStatusReceived)
	child := createNode(t, store, domain.ServerStatusReady, domain.ClientStatusReady)

	// Другой исполнитель уже запустил ребёнка.
	require.NoError(t, store.Nodes.SetStatus(ctx, child.ID, domain.Statuses{
		Server: domain.ServerStatusStarted,
		Client: domain.ClientStatusReady,
	}))

	err := m.WithRollback(ctx, node, Change{}, func(ctx context.Context) error {
		if err := m.Transition(ctx, node, Change{
			Server: domain.ServerStatusProcessingChildren,
			Client: domain.ClientStatusComplete,
		}); err != nil {
			return err
		}
		return m.Transition(ctx, child, Change{Server: domain.ServerStatusStarted})
	})
	assert.ErrorIs(t, err, ErrStaleStatusChange)

	stored, err := store.Nodes.GetByID(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStatusSentToClient, stored.CurrentServerStatus)
	assert.Equal(t, domain.ClientStatusReceived, stored.CurrentClientStatus)
}

func TestWithRollback_StaleOwnNodeKeepsWinner(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	node := createNode(t, store, domain.ServerStatusReady, domain.ClientStatusReady)

	require.NoError(t, store.Nodes.SetStatus(ctx, node.ID, domain.Statuses{
		Server: domain.ServerStatusStarted,
		Client: domain.ClientStatusReady,
	}))

	err := m.WithRollback(ctx, node, Change{Server: domain.ServerStatusReady}, func(ctx context.Context) error {
		return m.Transition(ctx, node, Change{Server: domain.ServerStatusStarted})
	})
	assert.ErrorIs(t, err, ErrStaleStatusChange)

	stored, err := store.Nodes.GetByID(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ServerStatusStarted, stored.CurrentServerStatus)
}
