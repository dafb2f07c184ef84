package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/kaif91/order-services/shared/deadline"
	"github.com/kaif91/order-services/shared/models"
)

const (
	deadlineNameHeader  = "deadline-name"
	deadlineTokenHeader = "deadline-token"
)

// PayloadDecoder rebuilds a deadline payload from its wire form
type PayloadDecoder func(data []byte) (interface{}, error)

type kafkaDeadlineHandler struct {
	handle deadline.HandlerFunc
	decode PayloadDecoder
}

// deadlineReader is the slice of kafka.Reader the scheduler consumes
// through
type deadlineReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaScheduler is a deadline.Scheduler backed by a Kafka delay topic.
// Messages sit in the delay topic until their publish time plus the
// configured delay has passed; a polling consumer then hands them to the
// registered handler. Cancellation is tracked by token: a canceled token
// is dropped when its message comes due.
type KafkaScheduler struct {
	delay  time.Duration
	reader deadlineReader
	writer *kafka.Writer
	logger zerolog.Logger

	mu       sync.Mutex
	handlers map[string]kafkaDeadlineHandler
	canceled map[deadline.Token]struct{}

	// pending buffers a fetched head message that was not yet due: the
	// group reader does not hand out a fetched message again within the
	// session, so it must be held until its time comes. Touched only by
	// the Run goroutine.
	pending *kafka.Message
}

var _ deadline.Scheduler = (*KafkaScheduler)(nil)

// NewKafkaScheduler creates a scheduler over a single delay topic whose
// level matches the given delay
func NewKafkaScheduler(brokers []string, topic string, groupID string, delay time.Duration, logger zerolog.Logger) *KafkaScheduler {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &KafkaScheduler{
		delay:    delay,
		reader:   reader,
		writer:   writer,
		logger:   logger.With().Str("component", "kafka_deadline_scheduler").Logger(),
		handlers: make(map[string]kafkaDeadlineHandler),
		canceled: make(map[deadline.Token]struct{}),
	}
}

// RegisterHandler binds the callback and payload decoder for a deadline name
func (s *KafkaScheduler) RegisterHandler(name string, handler deadline.HandlerFunc, decode PayloadDecoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = kafkaDeadlineHandler{handle: handler, decode: decode}
}

// Schedule publishes the deadline to the delay topic. The requested
// duration must match the topic's delay level.
func (s *KafkaScheduler) Schedule(ctx context.Context, name string, d time.Duration, payload interface{}) (deadline.Token, error) {
	s.mu.Lock()
	_, ok := s.handlers[name]
	s.mu.Unlock()
	if !ok {
		return "", errors.Errorf("no handler registered for deadline %q", name)
	}
	if d != s.delay {
		return "", errors.Errorf("scheduler delay level is %v, requested %v", s.delay, d)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal deadline payload")
	}

	token := models.GenerateUUID()
	msg := kafka.Message{
		Key:   []byte(name),
		Value: data,
		Headers: []kafka.Header{
			{Key: deadlineNameHeader, Value: []byte(name)},
			{Key: deadlineTokenHeader, Value: []byte(token.String())},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return "", errors.Wrap(err, "failed to publish deadline")
	}

	return token, nil
}

// Cancel marks a token so its message is dropped when it comes due.
// Idempotent for unknown and already-fired tokens.
func (s *KafkaScheduler) Cancel(_ string, token deadline.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled[token] = struct{}{}
}

// Run polls the delay topic until the context is canceled
func (s *KafkaScheduler) Run(ctx context.Context, interval time.Duration) {
	s.logger.Info().Dur("delay", s.delay).Msg("deadline polling started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkDue(ctx)
		case <-ctx.Done():
			s.logger.Info().Msg("deadline polling stopped")
			return
		}
	}
}

// Close releases the underlying Kafka reader and writer
func (s *KafkaScheduler) Close() error {
	if err := s.reader.Close(); err != nil {
		return errors.Wrap(err, "failed to close reader")
	}
	return errors.Wrap(s.writer.Close(), "failed to close writer")
}

// checkDue drains the head of the delay topic while its messages are due.
// The head message gates the rest: topic order equals schedule order, so a
// not-yet-due head means nothing behind it is due either.
func (s *KafkaScheduler) checkDue(ctx context.Context) {
	for {
		var msg kafka.Message
		if s.pending != nil {
			msg = *s.pending
		} else {
			fetchCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			fetched, err := s.reader.FetchMessage(fetchCtx)
			cancel()
			if err != nil {
				return
			}
			msg = fetched
		}

		dueAt := msg.Time.Add(s.delay)
		if time.Now().Before(dueAt) {
			s.pending = &msg
			return
		}
		s.pending = nil

		s.fire(ctx, msg)

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Error().Err(err).Msg("failed to commit deadline message")
			return
		}
	}
}

func (s *KafkaScheduler) fire(ctx context.Context, msg kafka.Message) {
	name := headerValue(msg.Headers, deadlineNameHeader)
	token := deadline.Token(headerValue(msg.Headers, deadlineTokenHeader))

	s.mu.Lock()
	_, isCanceled := s.canceled[token]
	delete(s.canceled, token)
	handler, ok := s.handlers[name]
	s.mu.Unlock()

	if isCanceled {
		return
	}
	if !ok {
		s.logger.Error().Str("deadline", name).Msg("deadline fired with no registered handler")
		return
	}

	payload, err := handler.decode(msg.Value)
	if err != nil {
		s.logger.Error().Err(err).Str("deadline", name).Msg("failed to decode deadline payload")
		return
	}

	handler.handle(ctx, payload)
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
