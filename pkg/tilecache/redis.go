package tilecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisL2 adapts a redis.Client to the L2 interface. A nil *RedisL2 (or a
// nil CacheURL at construction time) means "no L2" — callers pass a nil L2
// to tilecache.New rather than wrapping one here.
type RedisL2 struct {
	client *redis.Client
}

// NewRedisL2 parses addr (a redis:// URL) and returns a ready L2. Callers
// should ping once at startup via Ping to fail fast on misconfiguration;
// NewRedisL2 itself never talks to the network.
func NewRedisL2(addr string) (*RedisL2, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing cache URL: %w", err)
	}
	return &RedisL2{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity, used during startup health checks.
func (r *RedisL2) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *RedisL2) Close() error {
	return r.client.Close()
}

func (r *RedisL2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisL2) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}
