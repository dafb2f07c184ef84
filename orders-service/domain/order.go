package domain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderFinalized = errors.New("order already reached a terminal status")
)

// Order aggregate root, event sourced: state is rebuilt from the order's
// event stream and every mutation raises an event.
type Order struct {
	ID         models.ID
	UserID     models.ID
	ProductID  models.ID
	AddressID  models.ID
	Quantity   int
	Status     contracts.OrderStatus
	Reason     string
	Timestamps models.Timestamps

	version int
	events  []*messaging.Event
}

// CreateOrder factory method: validates and raises OrderCreated
func CreateOrder(cmd contracts.CreateOrderCommand) (*Order, error) {
	if cmd.OrderID == "" {
		return nil, errors.New("order ID is required")
	}
	if cmd.UserID == "" {
		return nil, errors.New("user ID is required")
	}
	if cmd.ProductID == "" {
		return nil, errors.New("product ID is required")
	}
	if cmd.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}

	order := &Order{
		ID:         cmd.OrderID,
		UserID:     cmd.UserID,
		ProductID:  cmd.ProductID,
		AddressID:  cmd.AddressID,
		Quantity:   cmd.Quantity,
		Status:     contracts.OrderStatusCreated,
		Timestamps: models.NewTimestamps(),
	}

	order.raise(contracts.OrderCreatedEventType, contracts.OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		ProductID: order.ProductID,
		AddressID: order.AddressID,
		Quantity:  order.Quantity,
		Status:    order.Status,
	})

	return order, nil
}

// Approve marks the order approved and raises OrderApproved
func (o *Order) Approve() error {
	if o.Status != contracts.OrderStatusCreated {
		return errors.Wrapf(ErrOrderFinalized, "order %s is %s", o.ID, o.Status)
	}

	o.Status = contracts.OrderStatusApproved
	o.Timestamps = o.Timestamps.Update()
	o.raise(contracts.OrderApprovedEventType, contracts.OrderApprovedEvent{
		OrderID: o.ID,
		Status:  o.Status,
	})
	return nil
}

// Reject marks the order rejected and raises OrderRejected carrying the
// originating failure reason verbatim.
func (o *Order) Reject(reason string) error {
	if o.Status != contracts.OrderStatusCreated {
		return errors.Wrapf(ErrOrderFinalized, "order %s is %s", o.ID, o.Status)
	}

	o.Status = contracts.OrderStatusRejected
	o.Reason = reason
	o.Timestamps = o.Timestamps.Update()
	o.raise(contracts.OrderRejectedEventType, contracts.OrderRejectedEvent{
		OrderID: o.ID,
		Status:  o.Status,
		Reason:  reason,
	})
	return nil
}

// Events returns the uncommitted events raised since the last clear
func (o *Order) Events() []*messaging.Event {
	return o.events
}

// ClearEvents drops the uncommitted events after they are persisted
func (o *Order) ClearEvents() {
	o.events = nil
}

// Version is the persisted stream version, uncommitted events excluded
func (o *Order) Version() int {
	return o.version
}

func (o *Order) raise(eventType string, payload interface{}) {
	event := messaging.NewEvent(o.ID, eventType, payload).WithCorrelationID(o.ID)
	o.events = append(o.events, event)
}

// FromHistory rebuilds an order by replaying its event stream
func FromHistory(history []*messaging.Event) (*Order, error) {
	if len(history) == 0 {
		return nil, ErrOrderNotFound
	}

	order := &Order{}
	for _, event := range history {
		if err := order.apply(event); err != nil {
			return nil, err
		}
		order.version++
	}
	return order, nil
}

func (o *Order) apply(event *messaging.Event) error {
	switch event.EventType {
	case contracts.OrderCreatedEventType:
		var created contracts.OrderCreatedEvent
		if err := event.UnmarshalPayload(&created); err != nil {
			return errors.Wrap(err, "failed to apply order created event")
		}
		o.ID = created.OrderID
		o.UserID = created.UserID
		o.ProductID = created.ProductID
		o.AddressID = created.AddressID
		o.Quantity = created.Quantity
		o.Status = created.Status

	case contracts.OrderApprovedEventType:
		var approved contracts.OrderApprovedEvent
		if err := event.UnmarshalPayload(&approved); err != nil {
			return errors.Wrap(err, "failed to apply order approved event")
		}
		o.Status = approved.Status

	case contracts.OrderRejectedEventType:
		var rejected contracts.OrderRejectedEvent
		if err := event.UnmarshalPayload(&rejected); err != nil {
			return errors.Wrap(err, "failed to apply order rejected event")
		}
		o.Status = rejected.Status
		o.Reason = rejected.Reason

	default:
		return errors.Errorf("unknown event type %q in order stream", event.EventType)
	}
	return nil
}

// OrderRepository loads and saves order aggregates
type OrderRepository interface {
	Load(ctx context.Context, orderID models.ID) (*Order, error)
	Save(ctx context.Context, order *Order) error
}
