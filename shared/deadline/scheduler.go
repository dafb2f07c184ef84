package deadline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/models"
)

// Token addresses a scheduled deadline for cancellation
type Token = models.ID

// HandlerFunc is invoked when a deadline fires
type HandlerFunc func(ctx context.Context, payload interface{})

// Scheduler schedules named callbacks to fire after a duration. Canceling
// a deadline that already fired, or was never armed, is a no-op.
type Scheduler interface {
	Schedule(ctx context.Context, name string, d time.Duration, payload interface{}) (Token, error)
	Cancel(name string, token Token)
}

// TimerScheduler is an in-process Scheduler backed by time.AfterFunc.
// Handlers are registered per deadline name before scheduling.
type TimerScheduler struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	pending  map[Token]*time.Timer
}

var _ Scheduler = (*TimerScheduler)(nil)

// NewTimerScheduler creates a new TimerScheduler
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		handlers: make(map[string]HandlerFunc),
		pending:  make(map[Token]*time.Timer),
	}
}

// RegisterHandler binds the callback for a deadline name
func (s *TimerScheduler) RegisterHandler(name string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// Schedule arms a deadline and returns its cancellation token
func (s *TimerScheduler) Schedule(_ context.Context, name string, d time.Duration, payload interface{}) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handler, ok := s.handlers[name]
	if !ok {
		return "", errors.Errorf("no handler registered for deadline %q", name)
	}

	token := models.GenerateUUID()
	s.pending[token] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.pending[token]
		delete(s.pending, token)
		s.mu.Unlock()

		// Cancel won the race, the deadline is dead.
		if !live {
			return
		}
		handler(context.Background(), payload)
	})

	return token, nil
}

// Cancel removes a pending deadline. Idempotent: unknown, already-fired
// and already-canceled tokens are ignored.
func (s *TimerScheduler) Cancel(_ string, token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.pending[token]
	if !ok {
		return
	}
	delete(s.pending, token)
	timer.Stop()
}

// PendingCount reports the number of armed deadlines
func (s *TimerScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
