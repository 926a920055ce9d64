package securestore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "securestore:v1:"

// Redis stores records in Redis under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a Redis-backed store. An empty prefix selects the default.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Put implements Store.
func (s *Redis) Put(ctx context.Context, key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, 0).Err(); err != nil {
		return wrap("redis set", err)
	}
	return nil
}

// Get implements Store.
func (s *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrap("redis get", err)
	}
	if err := decode(payload, dst); err != nil {
		return false, err
	}
	return true, nil
}
