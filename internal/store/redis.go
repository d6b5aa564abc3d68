package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisNamespace prefixes every key written by Redis.
const RedisNamespace = "mawaqit:"

// Redis stores keys in a Redis database without expiry.
type Redis struct{ rdb *redis.Client }

// NewRedis connects to addr and pings it.
func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func rkey(key string) string { return RedisNamespace + key }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, rkey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, rkey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	iter := r.rdb.Scan(ctx, 0, rkey(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		full := iter.Val()
		if !strings.HasPrefix(full, RedisNamespace+prefix) {
			continue
		}
		keys = append(keys, strings.TrimPrefix(full, RedisNamespace))
	}
	if err := iter.Err(); err != nil {
		return keys, fmt.Errorf("scan %s*: %w", prefix, err)
	}
	return keys, nil
}

func (r *Redis) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := r.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = rkey(k)
	}
	n, err := r.rdb.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("remove %s*: %w", prefix, err)
	}
	return int(n), nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
