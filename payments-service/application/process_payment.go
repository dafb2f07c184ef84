package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// ErrInvalidPaymentDetails is returned when a charge is attempted without
// usable payment details
var ErrInvalidPaymentDetails = errors.New("invalid payment details")

// ProcessPayment use case charges the payment details on file for an
// order and emits PaymentProcessed on success.
type ProcessPayment struct {
	eventPublisher messaging.Publisher
	logger         zerolog.Logger
}

// NewProcessPayment creates a new ProcessPayment use case
func NewProcessPayment(eventPublisher messaging.Publisher, logger zerolog.Logger) *ProcessPayment {
	return &ProcessPayment{
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute performs the charge and publishes the confirmation event
func (uc *ProcessPayment) Execute(ctx context.Context, cmd *contracts.ProcessPaymentCommand) error {
	if cmd.PaymentDetails.IsZero() {
		return ErrInvalidPaymentDetails
	}

	uc.logger.Info().
		Str("order_id", cmd.OrderID.String()).
		Str("payment_id", cmd.PaymentID.String()).
		Msg("payment processed")

	event := messaging.NewEvent(cmd.OrderID, contracts.PaymentProcessedEventType, contracts.PaymentProcessedEvent{
		OrderID:   cmd.OrderID,
		PaymentID: cmd.PaymentID,
	})

	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish payment processed event")
	}

	return nil
}
