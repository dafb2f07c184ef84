package messaging

import (
	"context"

	"github.com/pkg/errors"
)

// MultiPublisher fans each publish out to every underlying publisher in
// order. Used to pair the in-process bus with an external transport so
// local handlers and remote processes see the same events.
type MultiPublisher struct {
	publishers []Publisher
}

var _ Publisher = (*MultiPublisher)(nil)

// NewMultiPublisher creates a new MultiPublisher
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish sends the events to every publisher, stopping at the first
// failure
func (p *MultiPublisher) Publish(ctx context.Context, events ...*Event) error {
	for _, publisher := range p.publishers {
		if err := publisher.Publish(ctx, events...); err != nil {
			return errors.Wrap(err, "failed to publish to downstream publisher")
		}
	}
	return nil
}
