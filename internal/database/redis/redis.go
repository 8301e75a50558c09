package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
	defaultPoolSize     = 10
)

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(opts *redis.Options) {
		opts.Password = password
	}
}

func WithDB(db int) Option {
	return func(opts *redis.Options) {
		opts.DB = db
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(opts *redis.Options) {
		opts.DialTimeout = d
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(opts *redis.Options) {
		opts.ReadTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(opts *redis.Options) {
		opts.WriteTimeout = d
	}
}

func WithPoolSize(n int) Option {
	return func(opts *redis.Options) {
		opts.PoolSize = n
	}
}

func New(ctx context.Context, addr string, opts ...Option) (*redis.Client, error) {
	const op = "database.redis.New"

	options := &redis.Options{
		Addr:         addr,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		PoolSize:     defaultPoolSize,
	}

	for _, opt := range opts {
		opt(options)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}
