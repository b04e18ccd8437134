package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/redisx"
)

// ViewCache is a read-through cache of full order views. It is never a
// source of truth: failures are logged and treated as misses.
//
// A miss returns a stamp of the order's cache generation. Set stores the view
// only while the generation still matches the stamp, so a view read before a
// concurrent Invalidate is dropped instead of outliving the change.
type ViewCache interface {
	Get(ctx context.Context, orderID string) (order *domain.Order, stamp int64, ok bool)
	Set(ctx context.Context, order *domain.Order, stamp int64)
	Invalidate(ctx context.Context, orderID string)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.Order, int64, bool) { return nil, 0, false }
func (noopCache) Set(context.Context, *domain.Order, int64)              {}
func (noopCache) Invalidate(context.Context, string)                     {}

// noStamp never matches a generation, so views read with it are not stored.
const noStamp = -1

var errStaleView = errors.New("order changed while its view was read")

type RedisViewCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisViewCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisViewCache {
	return &RedisViewCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *RedisViewCache) Get(ctx context.Context, orderID string) (*domain.Order, int64, bool) {
	pipe := c.rdb.Pipeline()
	viewCmd := pipe.Get(ctx, fmt.Sprintf(redisx.KeyOrderView, orderID))
	genCmd := pipe.Get(ctx, fmt.Sprintf(redisx.KeyOrderViewGen, orderID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("order view cache read failed", "error", err, "order_id", orderID)
		return nil, noStamp, false
	}

	stamp, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("order view generation is corrupt", "error", err, "order_id", orderID)
		return nil, noStamp, false
	}

	data, err := viewCmd.Bytes()
	if err != nil {
		return nil, stamp, false
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		c.logger.Warn("order view cache entry is corrupt", "error", err, "order_id", orderID)
		return nil, stamp, false
	}
	return &order, stamp, true
}

func (c *RedisViewCache) Set(ctx context.Context, order *domain.Order, stamp int64) {
	if stamp == noStamp {
		return
	}
	data, err := json.Marshal(order)
	if err != nil {
		return
	}

	genKey := fmt.Sprintf(redisx.KeyOrderViewGen, order.ID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		gen, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if gen != stamp {
			return errStaleView
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fmt.Sprintf(redisx.KeyOrderView, order.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleView), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("dropped stale order view", "order_id", order.ID)
	default:
		c.logger.Warn("order view cache write failed", "error", err, "order_id", order.ID)
	}
}

// Invalidate bumps the order's generation and drops its view in one
// transaction.
func (c *RedisViewCache) Invalidate(ctx context.Context, orderID string) {
	genKey := fmt.Sprintf(redisx.KeyOrderViewGen, orderID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, redisx.TTLOrderViewGen)
		pipe.Del(ctx, fmt.Sprintf(redisx.KeyOrderView, orderID))
		return nil
	})
	if err != nil {
		c.logger.Warn("order view cache invalidation failed", "error", err, "order_id", orderID)
	}
}

var ErrCheckoutInProgress = errors.New("checkout with this idempotency key is in progress")

// Idempotency remembers the outcome of a checkout per buyer and key.
// Claim returns the stored order ids when the checkout already completed.
type Idempotency interface {
	Claim(ctx context.Context, buyerID, key string) (orderIDs []string, err error)
	Complete(ctx context.Context, buyerID, key string, orderIDs []string) error
	Release(ctx context.Context, buyerID, key string) error
}

const pendingMarker = "pending"

type RedisIdempotency struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb, ttl: redisx.TTLIdempotency}
}

func (i *RedisIdempotency) Claim(ctx context.Context, buyerID, key string) ([]string, error) {
	k := fmt.Sprintf(redisx.KeyIdemCheckout, buyerID, key)

	claimed, err := i.rdb.SetNX(ctx, k, pendingMarker, i.ttl).Result()
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}

	val, err := i.rdb.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCheckoutInProgress
		}
		return nil, err
	}
	if val == pendingMarker {
		return nil, ErrCheckoutInProgress
	}

	var ids []string
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *RedisIdempotency) Complete(ctx context.Context, buyerID, key string, orderIDs []string) error {
	data, err := json.Marshal(orderIDs)
	if err != nil {
		return err
	}
	return i.rdb.Set(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, buyerID, key), data, i.ttl).Err()
}

func (i *RedisIdempotency) Release(ctx context.Context, buyerID, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, buyerID, key)).Err()
}
