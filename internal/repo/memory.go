package repo

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
)

// Memory — хранилище в памяти процесса.
//
// Используется в тестах и для локального запуска без Postgres.
// Транзакции выполняются последовательно; при ошибке состояние
// восстанавливается из снимка, сделанного в начале транзакции.
type Memory struct {
	txMu sync.Mutex

	mu            sync.RWMutex
	seq           int64
	users         map[uuid.UUID]domain.User
	workflows     map[uuid.UUID]domain.Workflow
	nodes         map[uuid.UUID]domain.Node
	statusChanges []domain.StatusChange
	deferredCalls map[uuid.UUID]domain.DeferredCall
}

// NewMemory создаёт пустое хранилище в памяти.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[uuid.UUID]domain.User),
		workflows:     make(map[uuid.UUID]domain.Workflow),
		nodes:         make(map[uuid.UUID]domain.Node),
		deferredCalls: make(map[uuid.UUID]domain.DeferredCall),
	}
}

// NewMemoryStore собирает Store поверх нового Memory.
func NewMemoryStore() (*Store, *Memory) {
	m := NewMemory()
	return &Store{
		Tx:            m,
		Nodes:         memoryNodes{m},
		Workflows:     memoryWorkflows{m},
		Users:         memoryUsers{m},
		StatusChanges: memoryStatusChanges{m},
		DeferredCalls: memoryDeferredCalls{m},
	}, m
}

type memoryTxKey struct{}

type memorySnapshot struct {
	seq           int64
	users         map[uuid.UUID]domain.User
	workflows     map[uuid.UUID]domain.Workflow
	nodes         map[uuid.UUID]domain.Node
	statusChanges []domain.StatusChange
	deferredCalls map[uuid.UUID]domain.DeferredCall
}

// WithTransaction выполняет fn последовательно с другими транзакциями.
func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memorySnapshot{
		seq:           m.seq,
		users:         maps.Clone(m.users),
		workflows:     maps.Clone(m.workflows),
		nodes:         maps.Clone(m.nodes),
		statusChanges: slices.Clone(m.statusChanges),
		deferredCalls: maps.Clone(m.deferredCalls),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = s.seq
	m.users = s.users
	m.workflows = s.workflows
	m.nodes = s.nodes
	m.statusChanges = s.statusChanges
	m.deferredCalls = s.deferredCalls
}

// StatusChangeCount возвращает общее число записей журнала.
func (m *Memory) StatusChangeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statusChanges)
}

// --- Nodes ---

type memoryNodes struct{ m *Memory }

func (s memoryNodes) Create(_ context.Context, node *domain.Node) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.nodes[node.ID]; ok {
		return ErrAlreadyExists
	}
	s.m.seq++
	node.Seq = s.m.seq
	node.UpdatedAt = node.CreatedAt
	s.m.nodes[node.ID] = *node
	return nil
}

func (s memoryNodes) GetByID(_ context.Context, id uuid.UUID) (*domain.Node, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	node, ok := s.m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &node, nil
}

func (s memoryNodes) ListByWorkflow(_ context.Context, workflowID uuid.UUID) ([]domain.Node, error) {
	return s.filter(func(n *domain.Node) bool { return n.WorkflowID == workflowID }), nil
}

func (s memoryNodes) ListChildren(_ context.Context, workflowID uuid.UUID, parentID *uuid.UUID) ([]domain.Node, error) {
	if parentID == nil {
		return s.filter(func(n *domain.Node) bool {
			return n.WorkflowID == workflowID && n.ParentID == nil
		}), nil
	}
	return s.filter(func(n *domain.Node) bool {
		return n.ParentID != nil && *n.ParentID == *parentID
	}), nil
}

func (s memoryNodes) ListLinkedTo(_ context.Context, id uuid.UUID) ([]domain.Node, error) {
	return s.filter(func(n *domain.Node) bool {
		return n.ParentLinkID != nil && *n.ParentLinkID == id
	}), nil
}

func (s memoryNodes) ListByServerStatus(_ context.Context, workflowID uuid.UUID, status domain.ServerStatus) ([]domain.Node, error) {
	return s.filter(func(n *domain.Node) bool {
		return n.WorkflowID == workflowID && n.CurrentServerStatus == status
	}), nil
}

func (s memoryNodes) CompareAndSetStatus(_ context.Context, id uuid.UUID, observed, next domain.Statuses) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	node, ok := s.m.nodes[id]
	if !ok || node.Status() != observed {
		return false, nil
	}
	node.SetStatus(next)
	node.UpdatedAt = time.Now()
	s.m.nodes[id] = node
	return true, nil
}

func (s memoryNodes) SetStatus(_ context.Context, id uuid.UUID, next domain.Statuses) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	node, ok := s.m.nodes[id]
	if !ok {
		return ErrNotFound
	}
	node.SetStatus(next)
	node.UpdatedAt = time.Now()
	s.m.nodes[id] = node
	return nil
}

func (s memoryNodes) DecrementRetries(_ context.Context, id uuid.UUID) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	node, ok := s.m.nodes[id]
	if !ok {
		return 0, ErrNotFound
	}
	node.RetriesRemaining = max(node.RetriesRemaining-1, 0)
	s.m.nodes[id] = node
	return node.RetriesRemaining, nil
}

func (s memoryNodes) filter(keep func(n *domain.Node) bool) []domain.Node {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []domain.Node
	for _, n := range s.m.nodes {
		if keep(&n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b domain.Node) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

// --- Workflows ---

type memoryWorkflows struct{ m *Memory }

func (s memoryWorkflows) Create(_ context.Context, wf *domain.Workflow) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.workflows {
		if existing.UserID == wf.UserID && existing.Subject == wf.Subject && existing.Decider == wf.Decider {
			return ErrAlreadyExists
		}
	}
	s.m.workflows[wf.ID] = *wf
	return nil
}

func (s memoryWorkflows) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	wf, ok := s.m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &wf, nil
}

func (s memoryWorkflows) Find(_ context.Context, userID uuid.UUID, subject, decider string) (*domain.Workflow, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, wf := range s.m.workflows {
		if wf.UserID == userID && wf.Subject == subject && wf.Decider == decider {
			return &wf, nil
		}
	}
	return nil, ErrNotFound
}

func (s memoryWorkflows) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WorkflowStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	wf, ok := s.m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.Status = status
	s.m.workflows[id] = wf
	return nil
}

// --- Users ---

type memoryUsers struct{ m *Memory }

func (s memoryUsers) Create(_ context.Context, user *domain.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[user.ID]; ok {
		return ErrAlreadyExists
	}
	s.m.users[user.ID] = *user
	return nil
}

func (s memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	user, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// --- Status changes ---

type memoryStatusChanges struct{ m *Memory }

func (s memoryStatusChanges) Create(_ context.Context, change *domain.StatusChange) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.statusChanges = append(s.m.statusChanges, *change)
	return nil
}

func (s memoryStatusChanges) ListByNode(_ context.Context, nodeID uuid.UUID) ([]domain.StatusChange, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []domain.StatusChange
	for _, c := range s.m.statusChanges {
		if c.NodeID == nodeID {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- Deferred calls ---

type memoryDeferredCalls struct{ m *Memory }

func (s memoryDeferredCalls) Create(_ context.Context, call *domain.DeferredCall) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.deferredCalls[call.ID] = *call
	return nil
}

func (s memoryDeferredCalls) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.DeferredCall, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	due := s.due(now, limit)
	for _, c := range due {
		delete(s.m.deferredCalls, c.ID)
	}
	return due, nil
}

func (s memoryDeferredCalls) LeaseDue(_ context.Context, now, until time.Time, limit int) ([]domain.DeferredCall, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	due := s.due(now, limit)
	for i := range due {
		due[i].FireAt = until
		s.m.deferredCalls[due[i].ID] = due[i]
	}
	return due, nil
}

func (s memoryDeferredCalls) Delete(_ context.Context, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.deferredCalls[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.deferredCalls, id)
	return nil
}

// due вызывается под s.m.mu.
func (s memoryDeferredCalls) due(now time.Time, limit int) []domain.DeferredCall {
	var due []domain.DeferredCall
	for _, c := range s.m.deferredCalls {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	slices.SortFunc(due, func(a, b domain.DeferredCall) int { return a.FireAt.Compare(b.FireAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

func (s memoryDeferredCalls) Count(_ context.Context) (int, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return len(s.m.deferredCalls), nil
}
