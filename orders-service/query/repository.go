package query

import (
	"context"
	"sync"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/models"
)

// SummaryRepository stores the order summary read model. Lookups for
// unknown orders return (nil, nil).
type SummaryRepository interface {
	Save(ctx context.Context, summary *contracts.OrderSummary) error
	FindByOrderID(ctx context.Context, orderID models.ID) (*contracts.OrderSummary, error)
}

// MemorySummaryRepository is a mutex-guarded in-memory SummaryRepository
type MemorySummaryRepository struct {
	mu        sync.RWMutex
	summaries map[models.ID]contracts.OrderSummary
}

var _ SummaryRepository = (*MemorySummaryRepository)(nil)

// NewMemorySummaryRepository creates a new MemorySummaryRepository
func NewMemorySummaryRepository() *MemorySummaryRepository {
	return &MemorySummaryRepository{
		summaries: make(map[models.ID]contracts.OrderSummary),
	}
}

// Save upserts a summary row
func (r *MemorySummaryRepository) Save(_ context.Context, summary *contracts.OrderSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[summary.OrderID] = *summary
	return nil
}

// FindByOrderID looks up a summary row
func (r *MemorySummaryRepository) FindByOrderID(_ context.Context, orderID models.ID) (*contracts.OrderSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary, ok := r.summaries[orderID]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}
