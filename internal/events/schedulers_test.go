package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/groupon/backbeat-sub000/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		retries  int
		interval int
		jitter   int
		want     time.Duration
	}{
		{"first retry of four", 3, 5, 0, 6 * time.Minute},
		{"last retry", 0, 5, 0, 261 * time.Minute},
		{"retries above four", 10, 5, 0, 5 * time.Minute},
		{"jitter scales with attempt", 2, 1, 3, (16 + 1 + 9) * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryDelay(tt.retries, tt.interval, tt.jitter))
		})
	}
}

func TestRetryDelay_GrowsAsRetriesRunOut(t *testing.T) {
	prev := time.Duration(0)
	for retries := 4; retries >= 0; retries-- {
		for jitter := 0; jitter < maxRetryJitter; jitter += 7 {
			d := RetryDelay(retries, 2, jitter)
			attempt := 4 - retries
			lower := time.Duration(attempt*attempt*attempt*attempt+2) * time.Minute
			upper := lower + time.Duration(maxRetryJitter*(attempt+1))*time.Minute
			assert.GreaterOrEqual(t, d, lower)
			assert.Less(t, d, upper)
		}
		d := RetryDelay(retries, 2, 0)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestScheduleAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	timer := env.addNode(t, "timer", nodeOpts{legacy: domain.LegacyTypeTimer})
	later := testNow.Add(time.Hour)
	timer.FiresAt = later
	require.NoError(t, env.d.FireEventWith(ctx, StartNode{}, timer, ScheduleAt))

	now := env.addNode(t, "now", nodeOpts{})
	require.NoError(t, env.d.FireEventWith(ctx, StartNode{}, now, ScheduleAt))

	require.Len(t, env.queue.calls, 2)
	assert.Equal(t, later, env.queue.calls[0].FireAt)
	assert.Equal(t, testNow, env.queue.calls[1].FireAt)
	assert.Equal(t, domain.TargetNode, env.queue.calls[1].TargetType)
}

func TestScheduleNow_RootTarget(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.d.FireEvent(context.Background(), ScheduleNextNode{}, env.root()))

	require.Len(t, env.queue.calls, 1)
	call := env.queue.calls[0]
	assert.Equal(t, domain.TargetWorkflow, call.TargetType)
	assert.Equal(t, env.wf.ID, call.TargetID)
	assert.Equal(t, testNow, call.FireAt)

	target, err := env.d.LoadCallTarget(context.Background(), call)
	require.NoError(t, err)
	assert.True(t, target.IsRoot())
}

func TestLoadTarget_NotFound(t *testing.T) {
	env := newTestEnv(t)
	call := domain.DeferredCall{TargetType: domain.TargetNode, TargetID: env.user.ID}

	_, err := env.d.LoadCallTarget(context.Background(), call)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = env.d.LoadTarget(context.Background(), env.user.ID)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestPerformEvent_RecordsSpan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	d := New(Config{
		Store:  env.store,
		Client: env.client,
		Queue:  env.queue,
		Tracer: provider.Tracer("test"),
		Now:    env.d.now,
	})

	ok := env.addNode(t, "ok", nodeOpts{server: domain.ServerStatusSentToClient, client: domain.ClientStatusReceived})
	require.NoError(t, d.FireEvent(ctx, ClientProcessing{}, ok))

	bad := env.addNode(t, "bad", nodeOpts{})
	require.Error(t, d.FireEvent(ctx, ClientProcessing{}, bad))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "event.client_processing", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestErrorClass(t *testing.T) {
	tests := map[string]error{
		"invalid_client_status_change": &state.InvalidClientStatusChange{},
		"invalid_server_status_change": &state.InvalidServerStatusChange{},
		"stale_status_change":          state.ErrStaleStatusChange,
		"http_error":                   &fakeHTTPError{},
		"not_found":                    ErrTargetNotFound,
		"context":                      context.DeadlineExceeded,
		"internal":                     errors.New("boom"),
	}
	for want, err := range tests {
		assert.Equal(t, want, ErrorClass(err))
	}
}
