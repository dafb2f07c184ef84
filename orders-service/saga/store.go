package saga

import (
	"context"
	"sync"

	"github.com/kaif91/order-services/shared/models"
)

// Store persists saga instances keyed by order id, with a secondary index
// from product id to order id for the reservation/payment leg, during
// which downstream events carry only the product id. Lookups for unknown
// keys return (nil, nil).
type Store interface {
	Save(ctx context.Context, instance *Instance) error
	GetByOrderID(ctx context.Context, orderID models.ID) (*Instance, error)
	GetByProductID(ctx context.Context, productID models.ID) (*Instance, error)
	Delete(ctx context.Context, orderID models.ID) error
}

// MemoryStore is a mutex-guarded in-memory Store
type MemoryStore struct {
	mu           sync.RWMutex
	byOrderID    map[models.ID]*Instance
	productIndex map[models.ID]models.ID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byOrderID:    make(map[models.ID]*Instance),
		productIndex: make(map[models.ID]models.ID),
	}
}

// Save persists the instance and maintains the product index
func (s *MemoryStore) Save(_ context.Context, instance *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *instance
	s.byOrderID[instance.OrderID] = &clone
	if instance.ProductID != "" {
		s.productIndex[instance.ProductID] = instance.OrderID
	}
	return nil
}

// GetByOrderID looks up an instance by its primary correlation key
func (s *MemoryStore) GetByOrderID(_ context.Context, orderID models.ID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.byOrderID[orderID]
	if !ok {
		return nil, nil
	}
	clone := *instance
	return &clone, nil
}

// GetByProductID looks up an instance through the product index
func (s *MemoryStore) GetByProductID(_ context.Context, productID models.ID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, ok := s.productIndex[productID]
	if !ok {
		return nil, nil
	}
	instance, ok := s.byOrderID[orderID]
	if !ok {
		return nil, nil
	}
	clone := *instance
	return &clone, nil
}

// Delete removes the instance and its index entry. The index entry is
// removed only while it still points at this order: a later saga on the
// same product may have re-pointed it, and that saga is still live.
func (s *MemoryStore) Delete(_ context.Context, orderID models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.byOrderID[orderID]
	if !ok {
		return nil
	}
	delete(s.byOrderID, orderID)
	if instance.ProductID != "" && s.productIndex[instance.ProductID] == orderID {
		delete(s.productIndex, instance.ProductID)
	}
	return nil
}
