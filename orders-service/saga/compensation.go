package saga

import "github.com/kaif91/order-services/shared/contracts"

// NewCancelReservation builds the compensating command for a held
// reservation. Every failure class converges on this one command shape so
// the downstream handler stays uniform; only the reason differs.
func NewCancelReservation(instance *Instance, reason string) contracts.CancelProductReservationCommand {
	return contracts.CancelProductReservationCommand{
		OrderID:   instance.OrderID,
		ProductID: instance.ProductID,
		Quantity:  instance.Quantity,
		UserID:    instance.UserID,
		Reason:    reason,
	}
}
