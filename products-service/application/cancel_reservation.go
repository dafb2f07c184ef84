package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaif91/order-services/products-service/stock"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// CancelReservation use case returns held stock and emits
// ProductReservationCanceled carrying the reason that triggered the
// rollback.
type CancelReservation struct {
	stockStore     stock.Store
	eventPublisher messaging.Publisher
	logger         zerolog.Logger
}

// NewCancelReservation creates a new CancelReservation use case
func NewCancelReservation(stockStore stock.Store, eventPublisher messaging.Publisher, logger zerolog.Logger) *CancelReservation {
	return &CancelReservation{
		stockStore:     stockStore,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute releases the held stock and publishes the cancellation event
func (uc *CancelReservation) Execute(ctx context.Context, cmd *contracts.CancelProductReservationCommand) error {
	if err := uc.stockStore.Release(ctx, cmd.ProductID, cmd.Quantity); err != nil {
		return errors.Wrap(err, "failed to release stock")
	}

	uc.logger.Warn().
		Str("order_id", cmd.OrderID.String()).
		Str("product_id", cmd.ProductID.String()).
		Str("reason", cmd.Reason).
		Msg("product reservation canceled")

	// Back on the order leg: the cancellation is keyed by order id.
	event := messaging.NewEvent(cmd.ProductID, contracts.ProductReservationCanceledEventType, contracts.ProductReservationCanceledEvent{
		OrderID:   cmd.OrderID,
		ProductID: cmd.ProductID,
		Quantity:  cmd.Quantity,
		UserID:    cmd.UserID,
		Reason:    cmd.Reason,
	}).WithCorrelationID(cmd.OrderID)

	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish reservation canceled event")
	}

	return nil
}
