package kvstore

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	StateKey(name string) string
}

// Redis stores records as plain string keys without expiry.
type Redis struct {
	client redisClient
}

// NewRedis binds the store to a redis client.
func NewRedis(client redisClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.client.StateKey(key))
	if errors.Is(err, redis.ErrNil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read redis record")
	}
	return []byte(value), nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.client.StateKey(key), string(value), 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write redis record")
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.client.StateKey(key)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete redis record")
	}
	return nil
}
