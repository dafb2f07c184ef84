package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

func validCreateCommand() contracts.CreateOrderCommand {
	return contracts.CreateOrderCommand{
		OrderID:   models.GenerateUUID(),
		UserID:    models.GenerateUUID(),
		ProductID: models.GenerateUUID(),
		AddressID: models.GenerateUUID(),
		Quantity:  2,
	}
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*contracts.CreateOrderCommand)
		expectedError string
	}{
		{
			name:   "valid command",
			mutate: func(*contracts.CreateOrderCommand) {},
		},
		{
			name:          "missing order ID",
			mutate:        func(cmd *contracts.CreateOrderCommand) { cmd.OrderID = "" },
			expectedError: "order ID is required",
		},
		{
			name:          "missing user ID",
			mutate:        func(cmd *contracts.CreateOrderCommand) { cmd.UserID = "" },
			expectedError: "user ID is required",
		},
		{
			name:          "missing product ID",
			mutate:        func(cmd *contracts.CreateOrderCommand) { cmd.ProductID = "" },
			expectedError: "product ID is required",
		},
		{
			name:          "zero quantity",
			mutate:        func(cmd *contracts.CreateOrderCommand) { cmd.Quantity = 0 },
			expectedError: "quantity must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCreateCommand()
			tt.mutate(&cmd)

			order, err := CreateOrder(cmd)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, contracts.OrderStatusCreated, order.Status)
			require.Len(t, order.Events(), 1)

			event := order.Events()[0]
			assert.Equal(t, contracts.OrderCreatedEventType, event.EventType)
			assert.Equal(t, cmd.OrderID, event.AggregateID)
			assert.Equal(t, cmd.OrderID, event.CorrelationID)
		})
	}
}

func TestOrder_TerminalTransitions(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		order, err := CreateOrder(validCreateCommand())
		require.NoError(t, err)
		order.ClearEvents()

		require.NoError(t, order.Approve())
		assert.Equal(t, contracts.OrderStatusApproved, order.Status)
		require.Len(t, order.Events(), 1)
		assert.Equal(t, contracts.OrderApprovedEventType, order.Events()[0].EventType)

		// Terminal orders cannot move again.
		assert.True(t, errors.Is(order.Reject("late"), ErrOrderFinalized))
		assert.True(t, errors.Is(order.Approve(), ErrOrderFinalized))
	})

	t.Run("reject keeps the reason verbatim", func(t *testing.T) {
		order, err := CreateOrder(validCreateCommand())
		require.NoError(t, err)
		order.ClearEvents()

		require.NoError(t, order.Reject("Payment Timeout"))
		assert.Equal(t, contracts.OrderStatusRejected, order.Status)
		assert.Equal(t, "Payment Timeout", order.Reason)

		var rejected contracts.OrderRejectedEvent
		require.NoError(t, order.Events()[0].UnmarshalPayload(&rejected))
		assert.Equal(t, "Payment Timeout", rejected.Reason)
	})
}

func TestFromHistory(t *testing.T) {
	order, err := CreateOrder(validCreateCommand())
	require.NoError(t, err)
	require.NoError(t, order.Reject("insufficient stock"))

	history := make([]*messaging.Event, len(order.Events()))
	copy(history, order.Events())

	rebuilt, err := FromHistory(history)
	require.NoError(t, err)
	assert.Equal(t, order.ID, rebuilt.ID)
	assert.Equal(t, contracts.OrderStatusRejected, rebuilt.Status)
	assert.Equal(t, "insufficient stock", rebuilt.Reason)
	assert.Equal(t, 2, rebuilt.Version())
	assert.Empty(t, rebuilt.Events())
}

func TestFromHistory_EmptyStream(t *testing.T) {
	_, err := FromHistory(nil)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}
