// Package cache 包裝redis client，client為nil時所有操作皆略過。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/redis/go-redis/v9"
	"time"
)

type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// 讀取快取並反序列化至dest，命中時回傳true
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}

	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, dest) == nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// 寫入快取並記錄在集合tagKey中，方便一次清除
func (c *Cache) SetTagged(ctx context.Context, tagKey, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, tagKey, key)
	pipe.Expire(ctx, tagKey, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// 清除集合tagKey記錄的所有快取
func (c *Cache) Flush(ctx context.Context, tagKey string) error {
	if !c.Enabled() {
		return nil
	}
	keys, err := c.rdb.SMembers(ctx, tagKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return c.rdb.Del(ctx, append(keys, tagKey)...).Err()
}

// 計數加一並在第一次時設定有效期限
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		c.rdb.Expire(ctx, key, window)
	}
	return count, nil
}

func (c *Cache) Count(ctx context.Context, key string) int64 {
	if !c.Enabled() {
		return 0
	}
	count, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return count
}
