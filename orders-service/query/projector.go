package query

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/messaging"
)

// Projector materializes the order summary read model from order events.
// It lags behind command dispatch; the saga never writes the projection
// directly.
type Projector struct {
	repository SummaryRepository
	logger     zerolog.Logger
}

// NewProjector creates a new Projector
func NewProjector(repository SummaryRepository, logger zerolog.Logger) *Projector {
	return &Projector{repository: repository, logger: logger}
}

// Register subscribes the projector to the order event topics
func (p *Projector) Register(ctx context.Context, subscriber messaging.Subscriber) error {
	for _, topic := range []string{
		contracts.OrderCreatedEventType,
		contracts.OrderApprovedEventType,
		contracts.OrderRejectedEventType,
	} {
		if err := subscriber.Subscribe(ctx, topic, p); err != nil {
			return errors.Wrapf(err, "failed to subscribe to %s", topic)
		}
	}
	return nil
}

// Handle implements the messaging.EventHandler interface
func (p *Projector) Handle(ctx context.Context, event *messaging.Event) error {
	switch event.EventType {
	case contracts.OrderCreatedEventType:
		return p.onCreated(ctx, event)
	case contracts.OrderApprovedEventType:
		return p.onApproved(ctx, event)
	case contracts.OrderRejectedEventType:
		return p.onRejected(ctx, event)
	default:
		return nil
	}
}

func (p *Projector) onCreated(ctx context.Context, event *messaging.Event) error {
	var created contracts.OrderCreatedEvent
	if err := event.UnmarshalPayload(&created); err != nil {
		return errors.Wrap(err, "failed to parse order created event")
	}

	return p.repository.Save(ctx, &contracts.OrderSummary{
		OrderID: created.OrderID,
		Status:  created.Status,
	})
}

func (p *Projector) onApproved(ctx context.Context, event *messaging.Event) error {
	var approved contracts.OrderApprovedEvent
	if err := event.UnmarshalPayload(&approved); err != nil {
		return errors.Wrap(err, "failed to parse order approved event")
	}

	summary, err := p.repository.FindByOrderID(ctx, approved.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to load order summary")
	}
	if summary == nil {
		p.logger.Warn().Str("order_id", approved.OrderID.String()).Msg("approval for unknown order summary")
		return nil
	}

	summary.Status = approved.Status
	return p.repository.Save(ctx, summary)
}

func (p *Projector) onRejected(ctx context.Context, event *messaging.Event) error {
	var rejected contracts.OrderRejectedEvent
	if err := event.UnmarshalPayload(&rejected); err != nil {
		return errors.Wrap(err, "failed to parse order rejected event")
	}

	summary, err := p.repository.FindByOrderID(ctx, rejected.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to load order summary")
	}
	if summary == nil {
		p.logger.Warn().Str("order_id", rejected.OrderID.String()).Msg("rejection for unknown order summary")
		return nil
	}

	summary.Status = rejected.Status
	summary.Reason = rejected.Reason
	return p.repository.Save(ctx, summary)
}
