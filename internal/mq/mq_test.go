package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredCallMessage(t *testing.T) {
	call := domain.DeferredCall{
		ID:         uuid.New(),
		Handler:    "client_error",
		TargetType: domain.TargetNode,
		TargetID:   uuid.New(),
		Args:       json.RawMessage(`{"response":{"code":1}}`),
		FireAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := NewDeferredCallMessage(call)
	require.NoError(t, err)
	assert.Equal(t, call.ID.String(), msg.ID)
	assert.Equal(t, MessageTypeEventDue, msg.Type)

	// Конверт проходит через JSON так же, как через брокер
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	var received Message
	require.NoError(t, json.Unmarshal(body, &received))

	got, err := ParsePayload[domain.DeferredCall](&received)
	require.NoError(t, err)
	assert.Equal(t, call.Handler, got.Handler)
	assert.Equal(t, call.TargetID, got.TargetID)
	assert.True(t, call.FireAt.Equal(got.FireAt))
	assert.JSONEq(t, string(call.Args), string(got.Args))
}

func TestParsePayload_Invalid(t *testing.T) {
	_, err := ParsePayload[domain.DeferredCall](&Message{Payload: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}

func TestTopology_DueQueueDeadLetters(t *testing.T) {
	bindings := topology()
	require.Len(t, bindings, 2)

	due := bindings[0]
	assert.Equal(t, QueueEventsDue, due.queue)
	assert.Equal(t, ExchangeEvents, due.exchange)
	assert.Equal(t, RoutingKeyDue, due.routingKey)
	assert.Equal(t, string(ExchangeDLQ), due.args["x-dead-letter-exchange"])
	assert.Equal(t, string(RoutingKeyDLQEvents), due.args["x-dead-letter-routing-key"])

	dlq := bindings[1]
	assert.Equal(t, QueueDLQEvents, dlq.queue)
	assert.Equal(t, ExchangeDLQ, dlq.exchange)
}
