package application

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaif91/order-services/products-service/stock"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []*messaging.Event
}

func (p *capturingPublisher) Publish(_ context.Context, events ...*messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) published() []*messaging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*messaging.Event(nil), p.events...)
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestReserveProduct_Execute(t *testing.T) {
	ctx := context.Background()
	store := stock.NewMemoryStore()
	publisher := &capturingPublisher{}
	uc := NewReserveProduct(store, publisher, testLogger())

	orderID := models.GenerateUUID()
	productID := models.GenerateUUID()
	require.NoError(t, store.SetStock(ctx, productID, 5))

	cmd := &contracts.ReserveProductCommand{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  2,
		UserID:    models.GenerateUUID(),
	}
	require.NoError(t, uc.Execute(ctx, cmd))

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, contracts.ProductReservedEventType, events[0].EventType)
	assert.Equal(t, productID, events[0].AggregateID, "reservation events are keyed by product id")
	assert.Empty(t, events[0].CorrelationID)

	var reserved contracts.ProductReservedEvent
	require.NoError(t, events[0].UnmarshalPayload(&reserved))
	assert.Equal(t, orderID, reserved.OrderID)
	assert.Equal(t, 2, reserved.Quantity)
}

func TestReserveProduct_InsufficientStockEmitsNothing(t *testing.T) {
	ctx := context.Background()
	store := stock.NewMemoryStore()
	publisher := &capturingPublisher{}
	uc := NewReserveProduct(store, publisher, testLogger())

	err := uc.Execute(ctx, &contracts.ReserveProductCommand{
		OrderID:   models.GenerateUUID(),
		ProductID: models.GenerateUUID(),
		Quantity:  1,
		UserID:    models.GenerateUUID(),
	})
	assert.True(t, errors.Is(err, stock.ErrInsufficientStock))
	assert.Empty(t, publisher.published())
}

func TestCancelReservation_Execute(t *testing.T) {
	ctx := context.Background()
	store := stock.NewMemoryStore()
	publisher := &capturingPublisher{}
	uc := NewCancelReservation(store, publisher, testLogger())

	orderID := models.GenerateUUID()
	productID := models.GenerateUUID()
	require.NoError(t, store.SetStock(ctx, productID, 3))

	cmd := &contracts.CancelProductReservationCommand{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  2,
		UserID:    models.GenerateUUID(),
		Reason:    "Payment Timeout",
	}
	require.NoError(t, uc.Execute(ctx, cmd))

	left, err := store.GetStock(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 5, left)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, contracts.ProductReservationCanceledEventType, events[0].EventType)
	assert.Equal(t, orderID, events[0].CorrelationID, "cancellation events return to the order leg")

	var canceled contracts.ProductReservationCanceledEvent
	require.NoError(t, events[0].UnmarshalPayload(&canceled))
	assert.Equal(t, "Payment Timeout", canceled.Reason)
}
