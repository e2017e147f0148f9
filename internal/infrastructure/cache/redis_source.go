package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource reads a store's full record set from a Redis key holding a JSON
// array. It serves as the shared cache tier in the fallback chain when the
// primary source is unavailable.
type RedisSource[T any] struct {
	client *redis.Client
	key    string
}

// NewRedisSource creates a Redis-backed cache source for the given key
func NewRedisSource[T any](client *redis.Client, key string) *RedisSource[T] {
	return &RedisSource[T]{client: client, key: key}
}

// Name returns the source name
func (s *RedisSource[T]) Name() string {
	return "redis:" + s.key
}

// Fetch reads and decodes the JSON array stored under the key. A missing key
// is an error so the chain can fall through to the next source.
func (s *RedisSource[T]) Fetch(ctx context.Context) ([]T, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", s.key, err)
	}
	return records, nil
}

// Put stores the record set under the key so other instances can read it as
// their fallback tier
func (s *RedisSource[T]) Put(ctx context.Context, records []T) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", s.key, err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
