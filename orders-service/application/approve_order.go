package application

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/domain"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// ApproveOrder use case finalizes a fully paid order
type ApproveOrder struct {
	orderRepository domain.OrderRepository
	eventPublisher  messaging.Publisher
}

// NewApproveOrder creates a new ApproveOrder use case
func NewApproveOrder(orderRepository domain.OrderRepository, eventPublisher messaging.Publisher) *ApproveOrder {
	return &ApproveOrder{
		orderRepository: orderRepository,
		eventPublisher:  eventPublisher,
	}
}

// Execute transitions the order to approved and publishes OrderApproved
func (uc *ApproveOrder) Execute(ctx context.Context, cmd *contracts.ApproveOrderCommand) error {
	order, err := uc.orderRepository.Load(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to load order")
	}

	if err := order.Approve(); err != nil {
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
