package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/internal/logging"
)

// InitRedis accepts either host:port or a redis:// URL in redis.addr.
func InitRedis(cfg config.Config) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Redis.Addr, "redis://") || strings.HasPrefix(cfg.Redis.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func CloseRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		logging.New("redis").Error("close redis client", "error", err.Error())
	}
}
