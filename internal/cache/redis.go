package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/storehook/webhook-svc/internal/config"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
