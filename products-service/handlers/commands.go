package handlers

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/products-service/application"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// ProductCommandHandlers routes product commands to their use cases
type ProductCommandHandlers struct {
	reserveProduct    *application.ReserveProduct
	cancelReservation *application.CancelReservation
}

// NewProductCommandHandlers creates new product command handlers
func NewProductCommandHandlers(
	reserveProduct *application.ReserveProduct,
	cancelReservation *application.CancelReservation,
) *ProductCommandHandlers {
	return &ProductCommandHandlers{
		reserveProduct:    reserveProduct,
		cancelReservation: cancelReservation,
	}
}

// Register binds the handlers to their command types
func (h *ProductCommandHandlers) Register(registry messaging.CommandRegistry) error {
	if err := registry.RegisterCommandHandler(contracts.ReserveProductCommandType,
		messaging.CommandHandlerFunc(h.HandleReserveProduct)); err != nil {
		return err
	}
	return registry.RegisterCommandHandler(contracts.CancelProductReservationCommandType,
		messaging.CommandHandlerFunc(h.HandleCancelReservation))
}

// HandleReserveProduct handles the ReserveProduct command
func (h *ProductCommandHandlers) HandleReserveProduct(ctx context.Context, cmd messaging.Command) (string, error) {
	reserve, ok := cmd.(contracts.ReserveProductCommand)
	if !ok {
		return "", errors.Errorf("unexpected command %T", cmd)
	}

	if err := h.reserveProduct.Execute(ctx, &reserve); err != nil {
		return "", err
	}
	return reserve.OrderID.String(), nil
}

// HandleCancelReservation handles the CancelProductReservation command
func (h *ProductCommandHandlers) HandleCancelReservation(ctx context.Context, cmd messaging.Command) (string, error) {
	cancel, ok := cmd.(contracts.CancelProductReservationCommand)
	if !ok {
		return "", errors.Errorf("unexpected command %T", cmd)
	}

	if err := h.cancelReservation.Execute(ctx, &cancel); err != nil {
		return "", err
	}
	return cancel.OrderID.String(), nil
}
