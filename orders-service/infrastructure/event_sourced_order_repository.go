package infrastructure

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/domain"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

// EventSourcedOrderRepository loads orders by replaying their event
// stream and saves them by appending uncommitted events with optimistic
// concurrency on the stream version.
type EventSourcedOrderRepository struct {
	eventStore messaging.EventStore
}

var _ domain.OrderRepository = (*EventSourcedOrderRepository)(nil)

// NewEventSourcedOrderRepository creates a new EventSourcedOrderRepository
func NewEventSourcedOrderRepository(eventStore messaging.EventStore) *EventSourcedOrderRepository {
	return &EventSourcedOrderRepository{eventStore: eventStore}
}

// Load rebuilds an order from its history
func (r *EventSourcedOrderRepository) Load(ctx context.Context, orderID models.ID) (*domain.Order, error) {
	history, err := r.eventStore.GetEvents(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load order stream")
	}
	if len(history) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	return domain.FromHistory(history)
}

// Save appends the order's uncommitted events to its stream
func (r *EventSourcedOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	events := order.Events()
	if len(events) == 0 {
		return nil
	}
	return r.eventStore.SaveEvents(ctx, order.ID, events, order.Version())
}
