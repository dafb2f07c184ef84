package handlers

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/payments-service/application"
	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// PaymentCommandHandlers routes payment commands to their use cases
type PaymentCommandHandlers struct {
	processPayment *application.ProcessPayment
}

// NewPaymentCommandHandlers creates new payment command handlers
func NewPaymentCommandHandlers(processPayment *application.ProcessPayment) *PaymentCommandHandlers {
	return &PaymentCommandHandlers{processPayment: processPayment}
}

// Register binds the handlers to their command types
func (h *PaymentCommandHandlers) Register(registry messaging.CommandRegistry) error {
	return registry.RegisterCommandHandler(contracts.ProcessPaymentCommandType,
		messaging.CommandHandlerFunc(h.HandleProcessPayment))
}

// HandleProcessPayment handles the ProcessPayment command. A charge
// attempted without usable payment details acknowledges with an empty
// value rather than an error: the sender decides what an unconfirmed
// payment means.
func (h *PaymentCommandHandlers) HandleProcessPayment(ctx context.Context, cmd messaging.Command) (string, error) {
	payment, ok := cmd.(contracts.ProcessPaymentCommand)
	if !ok {
		return "", errors.Errorf("unexpected command %T", cmd)
	}

	if err := h.processPayment.Execute(ctx, &payment); err != nil {
		if errors.Is(err, application.ErrInvalidPaymentDetails) {
			return "", nil
		}
		return "", err
	}
	return payment.PaymentID.String(), nil
}
