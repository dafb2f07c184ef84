package users

import (
	"context"
	"sync"

	"github.com/kaif91/order-services/shared/contracts"
	"github.com/kaif91/order-services/shared/models"
)

// Registry holds the accounts the users service knows about. Lookups for
// unknown users return (nil, nil).
type Registry interface {
	FindByID(ctx context.Context, userID models.ID) (*contracts.User, error)
	Save(ctx context.Context, user *contracts.User) error
}

// MemoryRegistry is a mutex-guarded in-memory Registry
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[models.ID]contracts.User
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a new MemoryRegistry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{users: make(map[models.ID]contracts.User)}
}

// Save upserts a user account
func (r *MemoryRegistry) Save(_ context.Context, user *contracts.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = *user
	return nil
}

// FindByID looks up a user account
func (r *MemoryRegistry) FindByID(_ context.Context, userID models.ID) (*contracts.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}
