package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/shared/models"
)

func TestMemoryBus_PerKeyOrdering(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	aggregateID := models.GenerateUUID()

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	err := bus.Subscribe(context.Background(), "order.*", EventHandlerFunc(func(_ context.Context, event *Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, event.EventType)
		if len(seen) == 3 {
			close(done)
		}
		return nil
	}))
	require.NoError(t, err)

	events := []*Event{
		NewEvent(aggregateID, "order.created", nil),
		NewEvent(aggregateID, "order.approved", nil),
		NewEvent(aggregateID, "order.rejected", nil),
	}
	require.NoError(t, bus.Publish(context.Background(), events...))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"order.created", "order.approved", "order.rejected"}, seen)
}

func TestMemoryBus_LaneKeyPrefersCorrelationID(t *testing.T) {
	aggregateID := models.GenerateUUID()
	correlationID := models.GenerateUUID()

	event := NewEvent(aggregateID, "product.reserved", nil)
	assert.Equal(t, aggregateID, laneKey(event))

	event.WithCorrelationID(correlationID)
	assert.Equal(t, correlationID, laneKey(event))
}

func TestMemoryBus_SubscriberPatternFiltering(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	received := make(chan string, 2)
	err := bus.Subscribe(context.Background(), "payment.processed", EventHandlerFunc(func(_ context.Context, event *Event) error {
		received <- event.EventType
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(),
		NewEvent(models.GenerateUUID(), "order.created", nil),
		NewEvent(models.GenerateUUID(), "payment.processed", nil),
	))

	select {
	case got := <-received:
		assert.Equal(t, "payment.processed", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case got := <-received:
		t.Fatalf("unexpected extra event %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type testCommand struct {
	commandType string
}

func (c testCommand) CommandType() string { return c.commandType }

func TestMemoryBus_Send(t *testing.T) {
	tests := []struct {
		name          string
		handler       CommandHandler
		expectedValue string
		expectedError string
	}{
		{
			name: "handler acknowledges",
			handler: CommandHandlerFunc(func(_ context.Context, _ Command) (string, error) {
				return "ack", nil
			}),
			expectedValue: "ack",
		},
		{
			name: "handler fails",
			handler: CommandHandlerFunc(func(_ context.Context, _ Command) (string, error) {
				return "", errors.New("insufficient stock")
			}),
			expectedError: "insufficient stock",
		},
		{
			name: "handler panics",
			handler: CommandHandlerFunc(func(_ context.Context, _ Command) (string, error) {
				panic("boom")
			}),
			expectedError: "command handler panic: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewMemoryBus()
			defer bus.Close()

			require.NoError(t, bus.RegisterCommandHandler("test.command", tt.handler))

			result := <-bus.Send(context.Background(), testCommand{commandType: "test.command"})
			if tt.expectedError != "" {
				require.Error(t, result.Err)
				assert.Contains(t, result.Err.Error(), tt.expectedError)
			} else {
				require.NoError(t, result.Err)
				assert.Equal(t, tt.expectedValue, result.Value)
			}
		})
	}
}

func TestMemoryBus_SendWithoutHandler(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	result := <-bus.Send(context.Background(), testCommand{commandType: "test.unknown"})
	require.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, ErrNoCommandHandler))
}

func TestMemoryBus_DuplicateCommandHandler(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	handler := CommandHandlerFunc(func(_ context.Context, _ Command) (string, error) { return "", nil })
	require.NoError(t, bus.RegisterCommandHandler("test.command", handler))

	err := bus.RegisterCommandHandler("test.command", handler)
	assert.True(t, errors.Is(err, ErrDuplicateCommandHandler))
}

type testQuery struct {
	id string
}

func (q testQuery) QueryType() string { return "test.query" }

func TestMemoryBus_SubscriptionQuery(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	require.NoError(t, bus.RegisterQueryHandler("test.query", QueryHandlerFunc(
		func(_ context.Context, _ Query) (interface{}, error) {
			return "initial", nil
		})))

	sub, err := bus.SubscriptionQuery(context.Background(), testQuery{id: "a"})
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, "initial", sub.Initial)

	// Update matching the subscription's query is delivered.
	bus.Emit("test.query", func(q Query) bool {
		return q.(testQuery).id == "a"
	}, "update-a")

	// Update for a different query instance is not.
	bus.Emit("test.query", func(q Query) bool {
		return q.(testQuery).id == "b"
	}, "update-b")

	select {
	case got := <-sub.Updates():
		assert.Equal(t, "update-a", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}

	select {
	case got := <-sub.Updates():
		t.Fatalf("unexpected update %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_EmitPrunesClosedSubscriptions(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	require.NoError(t, bus.RegisterQueryHandler("test.query", QueryHandlerFunc(
		func(_ context.Context, _ Query) (interface{}, error) {
			return nil, nil
		})))

	sub, err := bus.SubscriptionQuery(context.Background(), testQuery{id: "a"})
	require.NoError(t, err)

	sub.Close()
	sub.Close() // Close is idempotent

	bus.Emit("test.query", func(Query) bool { return true }, "late")

	bus.mu.RLock()
	defer bus.mu.RUnlock()
	assert.Empty(t, bus.subscriptions["test.query"])
}
