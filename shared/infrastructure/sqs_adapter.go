package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/messaging"
)

// SQSSubscriberAdapter exposes SQSEventSubscriber through the
// messaging.Subscriber interface. The queue carries every order event;
// topic filtering happens in the handler's dispatch table, so the
// eventType argument is ignored.
type SQSSubscriberAdapter struct {
	sqsSubscriber *SQSEventSubscriber
	isRunning     bool
	queueURL      string
}

var _ messaging.Subscriber = (*SQSSubscriberAdapter)(nil)

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter
func NewSQSSubscriberAdapter(queueURL string) (*SQSSubscriberAdapter, error) {
	return &SQSSubscriberAdapter{
		queueURL: queueURL,
	}, nil
}

// Subscribe implements the messaging.Subscriber interface
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, _ string, handler messaging.EventHandler) error {
	if s.isRunning {
		return errors.New("subscriber is already running")
	}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	s.sqsSubscriber = NewSQSEventSubscriber(sqs.NewFromConfig(cfg), s.queueURL, handler)

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.isRunning = true
	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	if !s.isRunning || s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(context.Background()); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.isRunning = false
	return nil
}
