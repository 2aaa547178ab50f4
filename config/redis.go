package config

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

func SetupRedisConnection(config Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", config.Redis.Addr, err)
	}

	return rdb, nil
}
