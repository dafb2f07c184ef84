package saga

import (
	"github.com/kaif91/order-services/shared/deadline"
	"github.com/kaif91/order-services/shared/models"
)

// State represents the lifecycle state of one saga instance
type State string

const (
	// StateStarted: OrderCreated handled, reservation requested
	StateStarted State = "started"
	// StateAwaitingPayment: reservation held, payment deadline armed
	StateAwaitingPayment State = "awaiting_payment"
	// StateAwaitingApproval: payment confirmed, approval requested
	StateAwaitingApproval State = "awaiting_approval"
	// StateCompensating: reservation rollback in flight
	StateCompensating State = "compensating"
)

// Instance is the correlation state of one order's saga. It is created on
// the first OrderCreated event for an order id, mutated only by that
// order's own handlers, and deleted once a terminal event is observed.
type Instance struct {
	OrderID       models.ID      `json:"order_id"`
	ProductID     models.ID      `json:"product_id"`
	Quantity      int            `json:"quantity"`
	UserID        models.ID      `json:"user_id"`
	DeadlineToken deadline.Token `json:"deadline_token,omitempty"`
	State         State          `json:"state"`
}
