package infrastructure

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

// MemoryEventStore is an in-process messaging.EventStore for tests and
// single-binary deployments. Same optimistic concurrency contract as
// the postgres store.
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[models.ID][]*messaging.Event
}

var _ messaging.EventStore = (*MemoryEventStore)(nil)

// NewMemoryEventStore creates a new MemoryEventStore
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[models.ID][]*messaging.Event),
	}
}

// SaveEvents appends events to the aggregate's stream
func (es *MemoryEventStore) SaveEvents(_ context.Context, aggregateID models.ID, events []*messaging.Event, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	stream := es.streams[aggregateID]
	if len(stream) != expectedVersion {
		return errors.Errorf("concurrency conflict: expected version %d, got %d", expectedVersion, len(stream))
	}

	es.streams[aggregateID] = append(stream, events...)
	return nil
}

// GetEvents retrieves all events for an aggregate
func (es *MemoryEventStore) GetEvents(_ context.Context, aggregateID models.ID) ([]*messaging.Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	stream := es.streams[aggregateID]
	out := make([]*messaging.Event, len(stream))
	copy(out, stream)
	return out, nil
}

// GetEventsByType retrieves events by type with pagination
func (es *MemoryEventStore) GetEventsByType(_ context.Context, eventType string, offset, limit int) ([]*messaging.Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var matched []*messaging.Event
	for _, stream := range es.streams {
		for _, event := range stream {
			if event.EventType == eventType {
				matched = append(matched, event)
			}
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}
