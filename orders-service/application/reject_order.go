package application

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/domain"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// RejectOrder use case rejects an order, preserving the failure reason
// verbatim for the read side.
type RejectOrder struct {
	orderRepository domain.OrderRepository
	eventPublisher  messaging.Publisher
}

// NewRejectOrder creates a new RejectOrder use case
func NewRejectOrder(orderRepository domain.OrderRepository, eventPublisher messaging.Publisher) *RejectOrder {
	return &RejectOrder{
		orderRepository: orderRepository,
		eventPublisher:  eventPublisher,
	}
}

// Execute transitions the order to rejected and publishes OrderRejected
func (uc *RejectOrder) Execute(ctx context.Context, cmd *contracts.RejectOrderCommand) error {
	order, err := uc.orderRepository.Load(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to load order")
	}

	if err := order.Reject(cmd.Reason); err != nil {
		return err
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
