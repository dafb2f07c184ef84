package contracts

import "github.com/kaif91/order-services/shared/models"

// Command type constants
const (
	CreateOrderCommandType              = "order.create"
	ReserveProductCommandType           = "product.reserve"
	CancelProductReservationCommandType = "product.reservation.cancel"
	ProcessPaymentCommandType           = "payment.process"
	ApproveOrderCommandType             = "order.approve"
	RejectOrderCommandType              = "order.reject"
)

// CreateOrderCommand starts the order workflow on the write side
type CreateOrderCommand struct {
	OrderID   models.ID   `json:"order_id"`
	UserID    models.ID   `json:"user_id"`
	ProductID models.ID   `json:"product_id"`
	AddressID models.ID   `json:"address_id"`
	Quantity  int         `json:"quantity"`
	Status    OrderStatus `json:"status"`
}

func (CreateOrderCommand) CommandType() string { return CreateOrderCommandType }

// ReserveProductCommand asks the products service to hold stock for an order
type ReserveProductCommand struct {
	OrderID   models.ID `json:"order_id"`
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UserID    models.ID `json:"user_id"`
}

func (ReserveProductCommand) CommandType() string { return ReserveProductCommandType }

// CancelProductReservationCommand compensates a previously held reservation
type CancelProductReservationCommand struct {
	OrderID   models.ID `json:"order_id"`
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UserID    models.ID `json:"user_id"`
	Reason    string    `json:"reason"`
}

func (CancelProductReservationCommand) CommandType() string {
	return CancelProductReservationCommandType
}

// ProcessPaymentCommand charges the user's payment details for an order
type ProcessPaymentCommand struct {
	OrderID        models.ID      `json:"order_id"`
	PaymentID      models.ID      `json:"payment_id"`
	PaymentDetails PaymentDetails `json:"payment_details"`
}

func (ProcessPaymentCommand) CommandType() string { return ProcessPaymentCommandType }

// ApproveOrderCommand finalizes a fully paid order
type ApproveOrderCommand struct {
	OrderID models.ID `json:"order_id"`
}

func (ApproveOrderCommand) CommandType() string { return ApproveOrderCommandType }

// RejectOrderCommand rejects an order with a human-readable reason
type RejectOrderCommand struct {
	OrderID models.ID `json:"order_id"`
	Reason  string    `json:"reason"`
}

func (RejectOrderCommand) CommandType() string { return RejectOrderCommandType }
