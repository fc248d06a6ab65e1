// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"care-assistant/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the session store connection. Keys are namespaced with KeyPrefix.
type RedisClient struct {
	Client    *redis.Client
	KeyPrefix string
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb, KeyPrefix: cfg.KeyPrefix}, nil
}

// Key builds a namespaced key from parts joined by ':'.
func (c *RedisClient) Key(parts ...string) string {
	key := c.KeyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// GetClient returns the underlying *redis.Client.
func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
