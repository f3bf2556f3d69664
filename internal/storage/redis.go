package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces chain keys inside a shared Redis database.
const redisKeyPrefix = "thoughtchain:"

// Verify interface compliance
var _ KV = (*RedisKV)(nil)

// RedisKV stores the chain key-value area in Redis. Multi-key writes go through
// MULTI/EXEC so readers never observe half of an update.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing client. Close closes the client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// DialRedis connects to addr and verifies the server answers PING.
func DialRedis(ctx context.Context, addr string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisKV(client), nil
}

func (r *RedisKV) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = redisKeyPrefix + k
	}

	vals, err := r.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading keys from redis: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // nil for missing keys
		}
		result[keys[i]] = []byte(s)
	}
	return result, nil
}

func (r *RedisKV) Set(ctx context.Context, entries map[string][]byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, redisKeyPrefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing keys to redis: %w", err)
	}
	return nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
