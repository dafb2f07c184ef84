package contracts

import "github.com/kaif91/order-services/shared/models"

// Event topic constants
const (
	OrderCreatedEventType               = "order.created"
	OrderApprovedEventType              = "order.approved"
	OrderRejectedEventType              = "order.rejected"
	ProductReservedEventType            = "product.reserved"
	ProductReservationCanceledEventType = "product.reservation.canceled"
	PaymentProcessedEventType           = "payment.processed"
)

// OrderStatus enumerates the externally visible states of an order
type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "CREATED"
	OrderStatusApproved OrderStatus = "APPROVED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderCreatedEvent is emitted by the write side when an order is accepted
type OrderCreatedEvent struct {
	OrderID   models.ID   `json:"order_id"`
	UserID    models.ID   `json:"user_id"`
	ProductID models.ID   `json:"product_id"`
	AddressID models.ID   `json:"address_id"`
	Quantity  int         `json:"quantity"`
	Status    OrderStatus `json:"status"`
}

// OrderApprovedEvent marks the order's terminal approved state
type OrderApprovedEvent struct {
	OrderID models.ID   `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// OrderRejectedEvent marks the order's terminal rejected state
type OrderRejectedEvent struct {
	OrderID models.ID   `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Reason  string      `json:"reason"`
}

// ProductReservedEvent confirms stock was held for an order
type ProductReservedEvent struct {
	OrderID   models.ID `json:"order_id"`
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UserID    models.ID `json:"user_id"`
}

// ProductReservationCanceledEvent confirms a reservation was rolled back,
// carrying the reason that triggered the compensation
type ProductReservationCanceledEvent struct {
	OrderID   models.ID `json:"order_id"`
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UserID    models.ID `json:"user_id"`
	Reason    string    `json:"reason"`
}

// PaymentProcessedEvent confirms a successful charge for an order
type PaymentProcessedEvent struct {
	OrderID   models.ID `json:"order_id"`
	PaymentID models.ID `json:"payment_id"`
}

// OrderSummary is the read-side projection of an order. Reason is empty
// unless the order was rejected.
type OrderSummary struct {
	OrderID models.ID   `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Reason  string      `json:"reason"`
}
