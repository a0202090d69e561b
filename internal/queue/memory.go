package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/groupon/backbeat-sub000/internal/domain"
)

// drainLimit — предел вызовов за один Drain.
const drainLimit = 10_000

// Runner выполняет доставленный вызов. Обычно это worker.Worker.Process.
type Runner func(ctx context.Context, call domain.DeferredCall) error

// Memory — очередь в памяти процесса.
type Memory struct {
	mu      sync.Mutex
	pending []domain.DeferredCall
	now     func() time.Time
}

// NewMemory создаёт пустую очередь. now задаёт текущее время для Drain
// (default: time.Now).
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

// Enqueue добавляет вызов.
func (q *Memory) Enqueue(_ context.Context, call domain.DeferredCall) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, call)
	return nil
}

// Pending возвращает копию ожидающих вызовов в порядке fire_at.
func (q *Memory) Pending() []domain.DeferredCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := slices.Clone(q.pending)
	slices.SortStableFunc(out, func(a, b domain.DeferredCall) int { return a.FireAt.Compare(b.FireAt) })
	return out
}

// Len возвращает число ожидающих вызовов.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain выполняет вызовы, время которых наступило, пока такие есть,
// включая порождённые по ходу. Возвращает число выполненных вызовов.
// Первая ошибка runner прерывает Drain.
func (q *Memory) Drain(ctx context.Context, run Runner) (int, error) {
	return q.drain(ctx, run, false)
}

// DrainAll выполняет все вызовы независимо от fire_at, как будто время
// продвинулось до каждого из них.
func (q *Memory) DrainAll(ctx context.Context, run Runner) (int, error) {
	return q.drain(ctx, run, true)
}

func (q *Memory) drain(ctx context.Context, run Runner, all bool) (int, error) {
	for n := 0; ; n++ {
		if n >= drainLimit {
			return n, ErrDrainLimit
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		call, ok := q.next(all)
		if !ok {
			return n, nil
		}
		if err := run(ctx, call); err != nil {
			return n + 1, err
		}
	}
}

// next извлекает самый ранний вызов (при равенстве — первый добавленный).
func (q *Memory) next(all bool) (domain.DeferredCall, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return domain.DeferredCall{}, false
	}

	idx := 0
	for i := range q.pending {
		if q.pending[i].FireAt.Before(q.pending[idx].FireAt) {
			idx = i
		}
	}
	call := q.pending[idx]
	if !all && !call.IsDue(q.now()) {
		return domain.DeferredCall{}, false
	}

	q.pending = slices.Delete(q.pending, idx, idx+1)
	return call, true
}
