package application

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/domain"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// CreateOrder use case accepts a new order on the write side and emits
// OrderCreated, which starts the saga.
type CreateOrder struct {
	orderRepository domain.OrderRepository
	eventPublisher  messaging.Publisher
}

// NewCreateOrder creates a new CreateOrder use case
func NewCreateOrder(orderRepository domain.OrderRepository, eventPublisher messaging.Publisher) *CreateOrder {
	return &CreateOrder{
		orderRepository: orderRepository,
		eventPublisher:  eventPublisher,
	}
}

// Execute persists the new order and publishes its creation event
func (uc *CreateOrder) Execute(ctx context.Context, cmd *contracts.CreateOrderCommand) error {
	order, err := domain.CreateOrder(*cmd)
	if err != nil {
		return errors.Wrap(err, "invalid command")
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return errors.Wrap(err, "failed to save order")
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		return errors.Wrap(err, "failed to publish order events")
	}
	order.ClearEvents()

	return nil
}
