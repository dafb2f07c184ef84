package stock

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/kaif91/order-services/shared/models"
)

const stockKeyPrefix = "stock:product:"

// luaReserveStock: atomic read stock, check against the requested amount,
// DECRBY. Returns the remaining stock, or -1 when not enough is left.
const luaReserveStock = `
local key = KEYS[1]
local decr = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', key) or '0')
if current >= decr then
  return redis.call('DECRBY', key, decr)
else
  return -1
end
`

// RedisStore is a Store over Redis. Reservations decrement a per-product
// counter through a Lua script so concurrent reservations never oversell.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new RedisStore
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// SetStock overwrites the stock counter for a product
func (s *RedisStore) SetStock(ctx context.Context, productID models.ID, quantity int) error {
	err := s.rdb.Set(ctx, stockKeyPrefix+productID.String(), quantity, 0).Err()
	return errors.Wrap(err, "failed to set stock")
}

// GetStock returns the current stock counter for a product
func (s *RedisStore) GetStock(ctx context.Context, productID models.ID) (int, error) {
	current, err := s.rdb.Get(ctx, stockKeyPrefix+productID.String()).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to get stock")
	}
	return current, nil
}

// Reserve atomically decrements the stock counter
func (s *RedisStore) Reserve(ctx context.Context, productID models.ID, quantity int) error {
	res, err := s.rdb.Eval(ctx, luaReserveStock, []string{stockKeyPrefix + productID.String()}, quantity).Int()
	if err != nil {
		return errors.Wrap(err, "failed to reserve stock")
	}
	if res < 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Release returns previously reserved units to the stock counter
func (s *RedisStore) Release(ctx context.Context, productID models.ID, quantity int) error {
	err := s.rdb.IncrBy(ctx, stockKeyPrefix+productID.String(), int64(quantity)).Err()
	return errors.Wrap(err, "failed to release stock")
}
