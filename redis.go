package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisConnectTimeout = 5 * time.Second

var ErrEmptyRedisAddress = errors.New("redis address is required")

// RedisStore keeps gallery keys in a redis database, for deployments where
// favorites should outlive the local sqlite file.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *Config) (*RedisStore, error) {
	if cfg.Redis.Address == "" {
		return nil, ErrEmptyRedisAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := rs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (rs *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return rs.client.Set(ctx, key, value, 0).Err()
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
