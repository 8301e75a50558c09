package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shootlink/shortener/internal/database"
)

// Store exposes the key-value primitives the application relies on:
// get/set with expiry, atomic counter and hash-field increments, and
// prefix-based key listing for bulk invalidation. Every piece of shared
// state lives behind these primitives; no in-process locking exists
// anywhere above this layer.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb: rdb,
	}
}

// Get returns the value stored at key. Absence of the key is reported
// as database.ErrKeyNotFound, never as an empty value.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "database.redis.Store.Get"

	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, database.ErrKeyNotFound)
		}

		return "", fmt.Errorf("%s: failed to get key: %w", op, err)
	}

	return val, nil
}

// Set stores value at key. A non-positive ttl stores the key without expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "database.redis.Store.Set"

	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set key: %w", op, err)
	}

	return nil
}

// SetNX stores value at key only if the key does not exist yet.
// It reports whether the write took place.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	const op = "database.redis.Store.SetNX"

	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: failed to set key: %w", op, err)
	}

	return ok, nil
}

// IncrBy atomically increments the counter at key by n and returns the new value.
func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	const op = "database.redis.Store.IncrBy"

	val, err := s.rdb.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to increment key: %w", op, err)
	}

	return val, nil
}

// HIncrBy atomically increments a hash field by n and returns the new value.
func (s *Store) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	const op = "database.redis.Store.HIncrBy"

	val, err := s.rdb.HIncrBy(ctx, key, field, n).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to increment hash field: %w", op, err)
	}

	return val, nil
}

// HSet overwrites the given hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	const op = "database.redis.Store.HSet"

	values := make([]any, 0, len(fields)*2)
	for field, value := range fields {
		values = append(values, field, value)
	}

	if err := s.rdb.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("%s: failed to set hash fields: %w", op, err)
	}

	return nil
}

// HGetAll returns all fields of the hash at key. A missing hash yields
// an empty map, not an error.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	const op = "database.redis.Store.HGetAll"

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get hash: %w", op, err)
	}

	return fields, nil
}

// Delete removes the given keys. Deleting absent keys is not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	const op = "database.redis.Store.Delete"

	if len(keys) == 0 {
		return nil
	}

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete keys: %w", op, err)
	}

	return nil
}

// Keys lists all keys starting with prefix. Used only for bulk cache
// invalidation, never on a request path.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	const op = "database.redis.Store.Keys"

	keys, err := s.rdb.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list keys: %w", op, err)
	}

	return keys, nil
}

// Expire sets the time to live of an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	const op = "database.redis.Store.Expire"

	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to expire key: %w", op, err)
	}

	return nil
}
