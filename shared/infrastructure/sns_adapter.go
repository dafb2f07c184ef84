package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/messaging"
)

// SNSPublisherAdapter wires SNSEventPublisher up from the default AWS
// config (works with LocalStack when AWS_ENDPOINT_URL is set).
type SNSPublisherAdapter struct {
	snsPublisher *SNSEventPublisher
}

var _ messaging.Publisher = (*SNSPublisherAdapter)(nil)

// NewSNSPublisherAdapter creates a new SNS publisher adapter
func NewSNSPublisherAdapter(topicArn string) (*SNSPublisherAdapter, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &SNSPublisherAdapter{
		snsPublisher: NewSNSEventPublisher(sns.NewFromConfig(cfg), topicArn),
	}, nil
}

// Publish implements the messaging.Publisher interface
func (p *SNSPublisherAdapter) Publish(ctx context.Context, events ...*messaging.Event) error {
	return p.snsPublisher.Publish(ctx, events...)
}

// Close closes the publisher
func (p *SNSPublisherAdapter) Close() error {
	// SNS client doesn't need explicit closing
	return nil
}
