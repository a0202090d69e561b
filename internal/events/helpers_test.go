package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingQueue запоминает отложенные вызовы вместо доставки.
type recordingQueue struct {
	mu    sync.Mutex
	calls []domain.DeferredCall
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, call domain.DeferredCall) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.calls = append(q.calls, call)
	return nil
}

func (q *recordingQueue) handlersFor(id uuid.UUID) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, c := range q.calls {
		if c.TargetID == id {
			out = append(out, c.Handler)
		}
	}
	return out
}

// fakeClient — шлюз клиента в памяти.
type fakeClient struct {
	mu            sync.Mutex
	decisions     []uuid.UUID
	activities    []uuid.UUID
	notifications []string
	activityErr   error
}

type fakeHTTPError struct{ body json.RawMessage }

func (e *fakeHTTPError) Error() string                 { return "http 500" }
func (e *fakeHTTPError) ResponseBody() json.RawMessage { return e.body }

func (c *fakeClient) PerformDecision(_ context.Context, _ *domain.User, node *domain.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions = append(c.decisions, node.ID)
	return nil
}

func (c *fakeClient) PerformActivity(_ context.Context, _ *domain.User, node *domain.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activities = append(c.activities, node.ID)
	return c.activityErr
}

func (c *fakeClient) Notify(_ context.Context, _ *domain.User, _ *domain.Node, message string, _ json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, message)
	return nil
}

type testEnv struct {
	store  *repo.Store
	mem    *repo.Memory
	queue  *recordingQueue
	client *fakeClient
	d      *Dispatcher
	wf     *domain.Workflow
	user   *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, mem := repo.NewMemoryStore()

	user := &domain.User{ID: uuid.New(), Name: "client"}
	require.NoError(t, store.Users.Create(ctx, user))

	wf := &domain.Workflow{
		ID:      uuid.New(),
		Name:    "wf",
		Status:  domain.WorkflowStatusOpen,
		Subject: "subject",
		Decider: "decider",
		UserID:  user.ID,
	}
	require.NoError(t, store.Workflows.Create(ctx, wf))

	env := &testEnv{
		store:  store,
		mem:    mem,
		queue:  &recordingQueue{},
		client: &fakeClient{},
		wf:     wf,
		user:   user,
	}
	env.d = New(Config{
		Store:  store,
		Client: env.client,
		Queue:  env.queue,
		Now:    func() time.Time { return testNow },
		Jitter: func(int) int { return 0 },
	})
	return env
}

type nodeOpts struct {
	parent  *domain.Node
	link    *domain.Node
	mode    domain.Mode
	server  domain.ServerStatus
	client  domain.ClientStatus
	legacy  domain.LegacyType
	retries int
}

func (e *testEnv) addNode(t *testing.T, name string, o nodeOpts) *domain.Node {
	t.Helper()
	if o.mode == "" {
		o.mode = domain.ModeBlocking
	}
	if o.server == "" {
		o.server = domain.ServerStatusReady
	}
	if o.client == "" {
		o.client = domain.ClientStatusReady
	}
	if o.legacy == "" {
		o.legacy = domain.LegacyTypeActivity
	}
	n := &domain.Node{
		ID:                  uuid.New(),
		WorkflowID:          e.wf.ID,
		UserID:              e.user.ID,
		Name:                name,
		Mode:                o.mode,
		LegacyType:          o.legacy,
		CurrentServerStatus: o.server,
		CurrentClientStatus: o.client,
		RetriesRemaining:    o.retries,
		RetryInterval:       5,
		CreatedAt:           testNow,
	}
	if o.parent != nil && !o.parent.IsRoot() {
		n.ParentID = &o.parent.ID
	}
	if o.link != nil {
		n.ParentLinkID = &o.link.ID
	}
	require.NoError(t, e.store.Nodes.Create(context.Background(), n))
	return n
}

func (e *testEnv) reload(t *testing.T, n *domain.Node) *domain.Node {
	t.Helper()
	fresh, err := e.store.Nodes.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	return fresh
}

func (e *testEnv) root() *domain.Node {
	return e.wf.AsNode()
}

// staleNodes имитирует проигранную гонку на каждом compare-and-swap.
type staleNodes struct {
	repo.NodeStore
}

func (staleNodes) CompareAndSetStatus(context.Context, uuid.UUID, domain.Statuses, domain.Statuses) (bool, error) {
	return false, nil
}

var errQueueDown = errors.New("queue down")
