package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/redisx"
)

const maxUpdateAttempts = 3

var ErrBusy = errors.New("cart is being modified concurrently")

type Store interface {
	Get(ctx context.Context, owner string) (*Cart, error)
	Update(ctx context.Context, owner string, fn func(c *Cart) error) (*Cart, error)
	Clear(ctx context.Context, owner string) error
}

// RedisStore keeps each cart as one JSON document. Updates use WATCH so two
// requests editing the same cart cannot overwrite each other.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, owner string) (*Cart, error) {
	return load(ctx, s.rdb, owner)
}

func (s *RedisStore) Update(ctx context.Context, owner string, fn func(c *Cart) error) (*Cart, error) {
	key := fmt.Sprintf(redisx.KeyCart, owner)

	var updated *Cart
	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, owner)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(c.Rows) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, data, redisx.TTLCart)
			return nil
		})
		if err != nil {
			return err
		}
		updated = c
		return nil
	}

	for range maxUpdateAttempts {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, ErrBusy
}

func (s *RedisStore) Clear(ctx context.Context, owner string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(redisx.KeyCart, owner)).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, cmd getter, owner string) (*Cart, error) {
	data, err := cmd.Get(ctx, fmt.Sprintf(redisx.KeyCart, owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{Owner: owner}, nil
	}
	if err != nil {
		return nil, err
	}

	c := &Cart{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", owner, err)
	}
	c.Owner = owner
	return c, nil
}
