package messaging

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kaif91/order-services/shared/models"
)

// MemoryBus is a single-process implementation of Publisher, Subscriber,
// CommandBus and QueryBus. Events for the same correlation key are
// delivered in order on a dedicated lane; different keys make progress
// independently.
type MemoryBus struct {
	mu              sync.RWMutex
	subscribers     []memorySubscriber
	commandHandlers map[string]CommandHandler
	queryHandlers   map[string]QueryHandler
	subscriptions   map[string][]*Subscription
	lanes           map[models.ID]chan *Event
	wg              sync.WaitGroup
	closed          bool
}

type memorySubscriber struct {
	pattern Topic
	handler EventHandler
}

const laneBuffer = 64

var _ Publisher = (*MemoryBus)(nil)
var _ Subscriber = (*MemoryBus)(nil)
var _ CommandBus = (*MemoryBus)(nil)
var _ QueryBus = (*MemoryBus)(nil)
var _ UpdateEmitter = (*MemoryBus)(nil)

// NewMemoryBus creates a new in-memory bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		commandHandlers: make(map[string]CommandHandler),
		queryHandlers:   make(map[string]QueryHandler),
		subscriptions:   make(map[string][]*Subscription),
		lanes:           make(map[models.ID]chan *Event),
	}
}

// Subscribe registers a handler for all events whose topic matches the
// given pattern. An empty pattern subscribes to everything.
func (b *MemoryBus) Subscribe(_ context.Context, eventType string, handler EventHandler) error {
	pattern := Topic(eventType)
	if eventType == "" {
		pattern = Topic("#")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("bus is closed")
	}
	b.subscribers = append(b.subscribers, memorySubscriber{pattern: pattern, handler: handler})
	return nil
}

// Publish delivers events to all matching subscribers. Delivery is
// serialized per correlation key so handlers for one saga instance never
// run concurrently with each other.
func (b *MemoryBus) Publish(ctx context.Context, events ...*Event) error {
	for _, event := range events {
		lane, err := b.lane(laneKey(event))
		if err != nil {
			return err
		}
		select {
		case lane <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// laneKey picks the serialization key: the correlation id when set,
// otherwise the aggregate id.
func laneKey(event *Event) models.ID {
	if event.CorrelationID != "" {
		return event.CorrelationID
	}
	return event.AggregateID
}

func (b *MemoryBus) lane(key models.ID) (chan *Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("bus is closed")
	}

	lane, ok := b.lanes[key]
	if ok {
		return lane, nil
	}

	lane = make(chan *Event, laneBuffer)
	b.lanes[key] = lane
	b.wg.Add(1)
	go b.deliver(lane)
	return lane, nil
}

func (b *MemoryBus) deliver(lane chan *Event) {
	defer b.wg.Done()
	for event := range lane {
		b.mu.RLock()
		subscribers := make([]memorySubscriber, len(b.subscribers))
		copy(subscribers, b.subscribers)
		b.mu.RUnlock()

		for _, sub := range subscribers {
			if !event.Topic.Matches(sub.pattern) {
				continue
			}
			if err := sub.handler.Handle(context.Background(), event); err != nil {
				log.Error().
					Err(err).
					Str("topic", event.Topic.String()).
					Str("aggregate_id", event.AggregateID.String()).
					Msg("event handler failed")
			}
		}
	}
}

// RegisterCommandHandler registers the single handler for a command type
func (b *MemoryBus) RegisterCommandHandler(commandType string, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.commandHandlers[commandType]; ok {
		return errors.Wrap(ErrDuplicateCommandHandler, commandType)
	}
	b.commandHandlers[commandType] = handler
	return nil
}

// Send dispatches the command asynchronously and reports the handler's
// outcome on the returned channel. A handler panic is converted into a
// failed CommandResult.
func (b *MemoryBus) Send(ctx context.Context, cmd Command) <-chan CommandResult {
	results := make(chan CommandResult, 1)

	b.mu.RLock()
	handler, ok := b.commandHandlers[cmd.CommandType()]
	b.mu.RUnlock()

	if !ok {
		results <- CommandResult{Err: errors.Wrap(ErrNoCommandHandler, cmd.CommandType())}
		close(results)
		return results
	}

	go func() {
		defer close(results)
		defer func() {
			if r := recover(); r != nil {
				results <- CommandResult{Err: errors.Errorf("command handler panic: %v", r)}
			}
		}()

		value, err := handler.Handle(ctx, cmd)
		results <- CommandResult{Value: value, Err: err}
	}()

	return results
}

// SendAndWait dispatches the command and blocks for its result
func (b *MemoryBus) SendAndWait(ctx context.Context, cmd Command) (string, error) {
	select {
	case result := <-b.Send(ctx, cmd):
		return result.Value, result.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RegisterQueryHandler registers the single handler for a query type
func (b *MemoryBus) RegisterQueryHandler(queryType string, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queryHandlers[queryType]; ok {
		return errors.Wrap(ErrDuplicateQueryHandler, queryType)
	}
	b.queryHandlers[queryType] = handler
	return nil
}

// Ask performs a point query
func (b *MemoryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	b.mu.RLock()
	handler, ok := b.queryHandlers[query.QueryType()]
	b.mu.RUnlock()

	if !ok {
		return nil, errors.Wrap(ErrNoQueryHandler, query.QueryType())
	}
	return handler.Handle(ctx, query)
}

// SubscriptionQuery answers the query once and registers the subscription
// for updates emitted against its query type.
func (b *MemoryBus) SubscriptionQuery(ctx context.Context, query Query) (*Subscription, error) {
	initial, err := b.Ask(ctx, query)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(query, initial)

	b.mu.Lock()
	b.subscriptions[query.QueryType()] = append(b.subscriptions[query.QueryType()], sub)
	b.mu.Unlock()

	return sub, nil
}

// Emit pushes an update to every open subscription of the given query
// type whose query matches the predicate. Closed subscriptions are
// pruned as a side effect.
func (b *MemoryBus) Emit(queryType string, match func(Query) bool, update interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := b.subscriptions[queryType][:0]
	for _, sub := range b.subscriptions[queryType] {
		if sub.isClosed() {
			continue
		}
		open = append(open, sub)
		if match(sub.Query()) {
			sub.push(update)
		}
	}
	b.subscriptions[queryType] = open
}

// Close stops all delivery lanes and waits for in-flight events to drain
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, lane := range b.lanes {
		close(lane)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
