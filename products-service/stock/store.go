package stock

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/models"
)

// ErrInsufficientStock is returned when a reservation asks for more units
// than the product has left
var ErrInsufficientStock = errors.New("insufficient stock")

// Store holds per-product stock levels. Reserve and Release are atomic per
// product.
type Store interface {
	SetStock(ctx context.Context, productID models.ID, quantity int) error
	GetStock(ctx context.Context, productID models.ID) (int, error)
	Reserve(ctx context.Context, productID models.ID, quantity int) error
	Release(ctx context.Context, productID models.ID, quantity int) error
}

// MemoryStore is a mutex-guarded in-memory Store
type MemoryStore struct {
	mu     sync.Mutex
	levels map[models.ID]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{levels: make(map[models.ID]int)}
}

// SetStock overwrites the stock level for a product
func (s *MemoryStore) SetStock(_ context.Context, productID models.ID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[productID] = quantity
	return nil
}

// GetStock returns the current stock level for a product
func (s *MemoryStore) GetStock(_ context.Context, productID models.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[productID], nil
}

// Reserve atomically decrements stock, failing when not enough is left
func (s *MemoryStore) Reserve(_ context.Context, productID models.ID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.levels[productID]
	if current < quantity {
		return ErrInsufficientStock
	}
	s.levels[productID] = current - quantity
	return nil
}

// Release returns previously reserved units to stock
func (s *MemoryStore) Release(_ context.Context, productID models.ID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[productID] += quantity
	return nil
}
