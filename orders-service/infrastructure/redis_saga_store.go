package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/kaif91/order-services/orders-service/saga"
	"github.com/kaif91/order-services/shared/models"
)

const (
	sagaOrderKeyPrefix   = "saga:order:"
	sagaProductKeyPrefix = "saga:product:"
)

// RedisSagaStore implements saga.Store on Redis. Instances are JSON
// blobs keyed by order id with a product-id pointer key alongside, both
// under the same TTL so abandoned sagas expire instead of leaking.
type RedisSagaStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ saga.Store = (*RedisSagaStore)(nil)

// NewRedisSagaStore creates a new RedisSagaStore
func NewRedisSagaStore(rdb *redis.Client, ttl time.Duration) *RedisSagaStore {
	return &RedisSagaStore{rdb: rdb, ttl: ttl}
}

// Save persists the instance and its product pointer
func (s *RedisSagaStore) Save(ctx context.Context, instance *saga.Instance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return errors.Wrap(err, "failed to marshal saga instance")
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sagaOrderKeyPrefix+instance.OrderID.String(), data, s.ttl)
	if instance.ProductID != "" {
		pipe.Set(ctx, sagaProductKeyPrefix+instance.ProductID.String(), instance.OrderID.String(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	return nil
}

// GetByOrderID looks up an instance by its primary correlation key
func (s *RedisSagaStore) GetByOrderID(ctx context.Context, orderID models.ID) (*saga.Instance, error) {
	data, err := s.rdb.Get(ctx, sagaOrderKeyPrefix+orderID.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Instance not found
		}
		return nil, errors.Wrap(err, "failed to find saga instance")
	}

	var instance saga.Instance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal saga instance")
	}

	return &instance, nil
}

// GetByProductID looks up an instance through the product pointer
func (s *RedisSagaStore) GetByProductID(ctx context.Context, productID models.ID) (*saga.Instance, error) {
	orderID, err := s.rdb.Get(ctx, sagaProductKeyPrefix+productID.String()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // No pointer for this product
		}
		return nil, errors.Wrap(err, "failed to resolve product pointer")
	}

	return s.GetByOrderID(ctx, models.ID(orderID))
}

// luaDelProductPointer deletes the product pointer only while it still
// points at the order being deleted. A later saga on the same product
// may have re-pointed it, and that saga is still live.
var luaDelProductPointer = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Delete removes the instance and, when it is still this order's, the
// product pointer
func (s *RedisSagaStore) Delete(ctx context.Context, orderID models.ID) error {
	instance, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if instance == nil {
		return nil
	}

	if err := s.rdb.Del(ctx, sagaOrderKeyPrefix+orderID.String()).Err(); err != nil {
		return errors.Wrap(err, "failed to delete saga instance")
	}
	if instance.ProductID != "" {
		err := luaDelProductPointer.Run(ctx, s.rdb,
			[]string{sagaProductKeyPrefix + instance.ProductID.String()},
			orderID.String(),
		).Err()
		if err != nil && err != redis.Nil {
			return errors.Wrap(err, "failed to delete product pointer")
		}
	}

	return nil
}
