package messaging

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNoQueryHandler        = errors.New("no handler registered for query")
	ErrDuplicateQueryHandler = errors.New("handler already registered for query")
	ErrSubscriptionClosed    = errors.New("subscription is closed")
)

// Query represents a request for state routed to exactly one handler
type Query interface {
	QueryType() string
}

// QueryHandler answers a query
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc adapts a function to the QueryHandler interface
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// QueryBus routes queries to their registered handler and supports
// long-lived subscription queries that receive emitted updates.
type QueryBus interface {
	// Ask performs a point request/response query.
	Ask(ctx context.Context, query Query) (interface{}, error)

	// SubscriptionQuery answers the query once and keeps the subscription
	// open for updates emitted against it. The caller owns the subscription
	// and must Close it.
	SubscriptionQuery(ctx context.Context, query Query) (*Subscription, error)
}

// QueryRegistry registers query handlers
type QueryRegistry interface {
	RegisterQueryHandler(queryType string, handler QueryHandler) error
}

// UpdateEmitter pushes updates to every outstanding subscription whose
// query matches the predicate.
type UpdateEmitter interface {
	Emit(queryType string, match func(Query) bool, update interface{})
}

// Subscription is a live subscription query. Initial holds the point
// answer at subscription time; Updates delivers emitted updates until
// the consumer closes the subscription.
type Subscription struct {
	Initial interface{}

	query   Query
	updates chan interface{}

	mu     sync.Mutex
	closed bool
}

func newSubscription(query Query, initial interface{}) *Subscription {
	return &Subscription{
		Initial: initial,
		query:   query,
		updates: make(chan interface{}, 8),
	}
}

// Query returns the query this subscription was opened with
func (s *Subscription) Query() Query {
	return s.query
}

// Updates returns the channel of emitted updates
func (s *Subscription) Updates() <-chan interface{} {
	return s.updates
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription) push(update interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- update:
	default:
		// slow consumer, drop rather than block the emitter
	}
}
