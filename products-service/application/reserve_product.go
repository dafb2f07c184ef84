package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaif91/order-services/products-service/stock"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// ReserveProduct use case holds stock for an order and emits
// ProductReserved. A failed hold returns the error to the command sender
// and emits nothing.
type ReserveProduct struct {
	stockStore     stock.Store
	eventPublisher messaging.Publisher
	logger         zerolog.Logger
}

// NewReserveProduct creates a new ReserveProduct use case
func NewReserveProduct(stockStore stock.Store, eventPublisher messaging.Publisher, logger zerolog.Logger) *ReserveProduct {
	return &ReserveProduct{
		stockStore:     stockStore,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute decrements stock and publishes the reservation event
func (uc *ReserveProduct) Execute(ctx context.Context, cmd *contracts.ReserveProductCommand) error {
	if err := uc.stockStore.Reserve(ctx, cmd.ProductID, cmd.Quantity); err != nil {
		return err
	}

	uc.logger.Info().
		Str("order_id", cmd.OrderID.String()).
		Str("product_id", cmd.ProductID.String()).
		Int("quantity", cmd.Quantity).
		Msg("product reserved")

	// The reservation leg is keyed by product id downstream.
	event := messaging.NewEvent(cmd.ProductID, contracts.ProductReservedEventType, contracts.ProductReservedEvent{
		OrderID:   cmd.OrderID,
		ProductID: cmd.ProductID,
		Quantity:  cmd.Quantity,
		UserID:    cmd.UserID,
	})

	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish product reserved event")
	}

	return nil
}
