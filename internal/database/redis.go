package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/healthcore/internal/config"
)

// NewRedis builds a client from cfg.URL and waits for PING to succeed.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	if err := waitReady(ctx, "redis", ping); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
