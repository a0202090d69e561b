package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/groupon/backbeat-sub000/internal/client"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/events"
	"github.com/groupon/backbeat-sub000/internal/queue"
	"github.com/groupon/backbeat-sub000/internal/repo"
	"github.com/groupon/backbeat-sub000/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// clientRequest — запрос, полученный тестовым клиентом.
type clientRequest struct {
	path string
	node domain.Node
	body map[string]json.RawMessage
}

// fakeClientServer изображает клиента backbeat: принимает решения,
// activity и уведомления. Activity с именем из failing отвечают 500.
type fakeClientServer struct {
	mu       sync.Mutex
	requests []clientRequest
	failing  map[string]bool
	srv      *httptest.Server
}

func newFakeClientServer(t *testing.T) *fakeClientServer {
	t.Helper()
	f := &fakeClientServer{failing: map[string]bool{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := clientRequest{path: r.URL.Path, body: body}
		for _, key := range []string{"decision", "activity"} {
			if raw, ok := body[key]; ok {
				assert.NoError(t, json.Unmarshal(raw, &req.node))
			}
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		fail := r.URL.Path == "/activity" && f.failing[req.node.Name]
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"card declined"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeClientServer) requestsTo(path string) []clientRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []clientRequest
	for _, r := range f.requests {
		if r.path == path {
			out = append(out, r)
		}
	}
	return out
}

type harness struct {
	o      *Orchestrator
	store  *repo.Store
	queue  *queue.Memory
	worker *worker.Worker
	client *fakeClientServer
	user   *domain.User
	wf     *domain.Workflow
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return now }

	store, _ := repo.NewMemoryStore()
	q := queue.NewMemory(clock)
	fc := newFakeClientServer(t)

	d := events.New(events.Config{
		Store:  store,
		Client: client.New(client.Config{Timeout: 5 * time.Second}),
		Queue:  q,
		Now:    clock,
		Jitter: func(int) int { return 0 },
	})
	o := New(Config{Store: store, Dispatcher: d, Now: clock})

	user, err := o.CreateUser(ctx, UserSpec{
		Name:                 "orders",
		DecisionEndpoint:     fc.srv.URL + "/decision",
		ActivityEndpoint:     fc.srv.URL + "/activity",
		NotificationEndpoint: fc.srv.URL + "/notification",
	})
	require.NoError(t, err)

	wf, created, err := o.FindOrCreateWorkflow(ctx, WorkflowSpec{
		UserID:  user.ID,
		Name:    "order fulfillment",
		Subject: `{"order_id":42}`,
		Decider: "OrderDecider",
	})
	require.NoError(t, err)
	require.True(t, created)

	return &harness{
		o:      o,
		store:  store,
		queue:  q,
		worker: worker.New(worker.Config{Store: store, Dispatcher: d, Now: clock}),
		client: fc,
		user:   user,
		wf:     wf,
	}
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	_, err := h.queue.Drain(context.Background(), h.worker.Process)
	require.NoError(t, err)
}

func (h *harness) drainAll(t *testing.T) {
	t.Helper()
	_, err := h.queue.DrainAll(context.Background(), h.worker.Process)
	require.NoError(t, err)
}

func (h *harness) status(t *testing.T, id domain.Node) domain.Statuses {
	t.Helper()
	n, err := h.store.Nodes.GetByID(context.Background(), id.ID)
	require.NoError(t, err)
	return n.Status()
}

func completeNode(t *testing.T, h *harness, n domain.Node) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.o.UpdateClientStatus(ctx, n.ID, ClientUpdateProcessing, nil))
	require.NoError(t, h.o.UpdateClientStatus(ctx, n.ID, ClientUpdateCompleted, nil))
	h.drain(t)
}

var (
	sentToClient = domain.Statuses{Server: domain.ServerStatusSentToClient, Client: domain.ClientStatusReceived}
	done         = domain.Statuses{Server: domain.ServerStatusComplete, Client: domain.ClientStatusComplete}
)

func TestEndToEnd_SignalToCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// 1. Сигнал создаёт узел и запускает его через очередь
	signal, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "order placed"})
	require.NoError(t, err)
	h.drain(t)

	assert.Equal(t, sentToClient, h.status(t, *signal))
	decisions := h.client.requestsTo("/decision")
	require.Len(t, decisions, 1)
	assert.Equal(t, signal.ID, decisions[0].node.ID)
	assert.Equal(t, domain.ServerStatusSentToClient, decisions[0].node.CurrentServerStatus)
	assert.Equal(t, domain.ClientStatusReceived, decisions[0].node.CurrentClientStatus)

	// 2. Decider добавляет детей и сообщает completed
	require.NoError(t, h.o.UpdateClientStatus(ctx, signal.ID, ClientUpdateProcessing, nil))
	children, err := h.o.AddChildren(ctx, signal.ID, []NodeSpec{
		{Name: "reserve stock"},
		{Name: "send email", Mode: "non_blocking"},
		{Name: "ship", Type: "activity"},
	})
	require.NoError(t, err)
	require.Len(t, children, 3)
	reserve, email, ship := children[0], children[1], children[2]

	require.NoError(t, h.o.UpdateClientStatus(ctx, signal.ID, ClientUpdateCompleted, nil))
	h.drain(t)

	// blocking reserve и non_blocking email запущены, ship ждёт reserve
	assert.Equal(t, sentToClient, h.status(t, reserve))
	assert.Equal(t, sentToClient, h.status(t, email))
	assert.Equal(t, domain.ServerStatusReady, h.status(t, ship).Server)
	assert.Len(t, h.client.requestsTo("/activity"), 2)

	// 3. reserve завершён: запускается ship
	completeNode(t, h, reserve)
	assert.Equal(t, done, h.status(t, reserve))
	assert.Equal(t, sentToClient, h.status(t, ship))

	// 4. Остальные завершены: завершается и сигнал
	completeNode(t, h, ship)
	assert.Equal(t, domain.ServerStatusProcessingChildren, h.status(t, *signal).Server,
		"signal still waits for the non_blocking child")

	completeNode(t, h, email)
	assert.Equal(t, done, h.status(t, *signal))
	assert.Zero(t, h.queue.Len())

	// Журнал сигнала описывает весь путь
	changes, err := h.o.StatusChanges(ctx, signal.ID)
	require.NoError(t, err)
	var serverPath []string
	for _, c := range changes {
		if c.StatusType == domain.StatusTypeServer {
			serverPath = append(serverPath, c.ToStatus)
		}
	}
	assert.Equal(t, []string{"ready", "started", "sent_to_client", "processing_children", "complete"}, serverPath)
}

func TestEndToEnd_RetryUntilExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.failing["charge card"] = true

	signal, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "order placed"})
	require.NoError(t, err)
	h.drain(t)

	require.NoError(t, h.o.UpdateClientStatus(ctx, signal.ID, ClientUpdateProcessing, nil))
	children, err := h.o.AddChildren(ctx, signal.ID, []NodeSpec{
		{Name: "charge card", RetriesRemaining: 2, RetryInterval: 1},
	})
	require.NoError(t, err)
	charge := children[0]

	require.NoError(t, h.o.UpdateClientStatus(ctx, signal.ID, ClientUpdateCompleted, nil))
	h.drain(t)

	// Первая ошибка: повтор запланирован с задержкой
	errored := domain.Statuses{Server: domain.ServerStatusSentToClient, Client: domain.ClientStatusErrored}
	assert.Equal(t, errored, h.status(t, charge))
	pending := h.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, events.NameRetryNode, pending[0].Handler)
	assert.Equal(t, now.Add(events.RetryDelay(1, 1, 0)), pending[0].FireAt)

	// Время идёт: повторы выполняются и тоже заканчиваются ошибкой
	h.drainAll(t)

	assert.Equal(t, errored, h.status(t, charge))
	assert.Len(t, h.client.requestsTo("/activity"), 3)

	fresh, err := h.o.Node(ctx, charge.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.RetriesRemaining)

	notifications := h.client.requestsTo("/notification")
	require.Len(t, notifications, 1)
	assert.JSONEq(t, `{"error":"card declined"}`, string(notifications[0].body["error"]))

	// Ответ клиента сохранён в журнале
	changes, err := h.o.StatusChanges(ctx, charge.ID)
	require.NoError(t, err)
	last := changes[len(changes)-1]
	assert.Equal(t, "errored", last.ToStatus)
	assert.JSONEq(t, `{"error":"card declined"}`, string(last.Response))
}

func TestSignal_RejectedOnCompleteWorkflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.o.Complete(ctx, h.wf.ID))

	_, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "late"})
	assert.ErrorIs(t, err, ErrWorkflowComplete)
	assert.ErrorIs(t, h.o.Pause(ctx, h.wf.ID), ErrWorkflowComplete)
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.o.Pause(ctx, h.wf.ID))
	signal, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "order placed"})
	require.NoError(t, err)
	h.drain(t)

	assert.Equal(t, domain.ServerStatusPaused, h.status(t, *signal).Server)
	assert.Empty(t, h.client.requestsTo("/decision"))

	require.NoError(t, h.o.Resume(ctx, h.wf.ID))
	h.drain(t)

	assert.Equal(t, sentToClient, h.status(t, *signal))
	assert.Len(t, h.client.requestsTo("/decision"), 1)

	assert.ErrorIs(t, h.o.Resume(ctx, h.wf.ID), ErrNotPaused)
}

func TestFindOrCreateWorkflow_Idempotent(t *testing.T) {
	h := newHarness(t)

	wf, created, err := h.o.FindOrCreateWorkflow(context.Background(), WorkflowSpec{
		UserID:  h.user.ID,
		Name:    "order fulfillment",
		Subject: `{"order_id":42}`,
		Decider: "OrderDecider",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h.wf.ID, wf.ID)
}

func TestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "x", Mode: "sometimes"})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, _, err = h.o.FindOrCreateWorkflow(ctx, WorkflowSpec{UserID: h.user.ID, Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = h.o.CreateUser(ctx, UserSpec{Name: "bad", DecisionEndpoint: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = h.o.AddChildren(ctx, h.wf.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestAddChildren_RequiresProcessingParent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	signal, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "order placed"})
	require.NoError(t, err)

	_, err = h.o.AddChildren(ctx, signal.ID, []NodeSpec{{Name: "child"}})
	assert.ErrorIs(t, err, ErrParentNotProcessing)
}

func TestUpdateClientStatus_Unknown(t *testing.T) {
	h := newHarness(t)
	signal, err := h.o.Signal(context.Background(), h.wf.ID, NodeSpec{Name: "order placed"})
	require.NoError(t, err)

	err = h.o.UpdateClientStatus(context.Background(), signal.ID, "paused", nil)
	assert.ErrorIs(t, err, ErrUnknownClientStatus)
}

func TestUpdateClientStatus_DeactivatesPreviousNodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "first", Mode: "non_blocking"})
	require.NoError(t, err)
	second, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "second", Mode: "non_blocking"})
	require.NoError(t, err)
	h.drain(t)

	require.NoError(t, h.o.UpdateClientStatus(ctx, second.ID, ClientUpdateDeactivated, nil))

	assert.Equal(t, domain.ServerStatusDeactivated, h.status(t, *first).Server)
	assert.Equal(t, sentToClient, h.status(t, *second))

	// Деактивированный узел игнорирует дальнейшие события
	require.NoError(t, h.o.UpdateClientStatus(ctx, first.ID, ClientUpdateProcessing, nil))
	assert.Equal(t, domain.ClientStatusReceived, h.status(t, *first).Client)
}

func TestDeactivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	signal, err := h.o.Signal(ctx, h.wf.ID, NodeSpec{Name: "order placed"})
	require.NoError(t, err)
	h.drain(t)
	require.NoError(t, h.o.UpdateClientStatus(ctx, signal.ID, ClientUpdateProcessing, nil))
	children, err := h.o.AddChildren(ctx, signal.ID, []NodeSpec{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)

	require.NoError(t, h.o.Deactivate(ctx, signal.ID))

	assert.Equal(t, domain.ServerStatusDeactivated, h.status(t, *signal).Server)
	for _, c := range children {
		assert.Equal(t, domain.ServerStatusDeactivated, h.status(t, c).Server)
	}

	tr, err := h.o.Tree(ctx, h.wf.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Len())
}
