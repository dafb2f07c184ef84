package handlers

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/orders-service/application"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// OrderCommandHandlers routes order commands to their use cases
type OrderCommandHandlers struct {
	createOrder  *application.CreateOrder
	approveOrder *application.ApproveOrder
	rejectOrder  *application.RejectOrder
}

// NewOrderCommandHandlers creates new order command handlers
func NewOrderCommandHandlers(
	createOrder *application.CreateOrder,
	approveOrder *application.ApproveOrder,
	rejectOrder *application.RejectOrder,
) *OrderCommandHandlers {
	return &OrderCommandHandlers{
		createOrder:  createOrder,
		approveOrder: approveOrder,
		rejectOrder:  rejectOrder,
	}
}

// Register binds the handlers to their command types
func (h *OrderCommandHandlers) Register(registry messaging.CommandRegistry) error {
	if err := registry.RegisterCommandHandler(contracts.CreateOrderCommandType,
		messaging.CommandHandlerFunc(h.HandleCreateOrder)); err != nil {
		return err
	}
	if err := registry.RegisterCommandHandler(contracts.ApproveOrderCommandType,
		messaging.CommandHandlerFunc(h.HandleApproveOrder)); err != nil {
		return err
	}
	return registry.RegisterCommandHandler(contracts.RejectOrderCommandType,
		messaging.CommandHandlerFunc(h.HandleRejectOrder))
}

// HandleCreateOrder handles the CreateOrder command
func (h *OrderCommandHandlers) HandleCreateOrder(ctx context.Context, cmd messaging.Command) (string, error) {
	create, ok := cmd.(contracts.CreateOrderCommand)
	if !ok {
		return "", errors.Errorf("unexpected command %T", cmd)
	}

	if err := h.createOrder.Execute(ctx, &create); err != nil {
		return "", err
	}
	return create.OrderID.String(), nil
}

// HandleApproveOrder handles the ApproveOrder command
func (h *OrderCommandHandlers) HandleApproveOrder(ctx context.Context, cmd messaging.Command) (string, error) {
	approve, ok := cmd.(contracts.ApproveOrderCommand)
	if !ok {
		return "", errors.Errorf("unexpected command %T", cmd)
	}

	if err := h.approveOrder.Execute(ctx, &approve); err != nil {
		return "", err
	}
	return approve.OrderID.String(), nil
}

// HandleRejectOrder handles the RejectOrder command
func (h *OrderCommandHandlers) HandleRejectOrder(ctx context.Context, cmd messaging.Command) (string, error) {
	reject, ok := cmd.(contracts.RejectOrderCommand)
	if !ok {
		return "", errors.Errorf("unexpected command %T", cmd)
	}

	if err := h.rejectOrder.Execute(ctx, &reject); err != nil {
		return "", err
	}
	return reject.OrderID.String(), nil
}
