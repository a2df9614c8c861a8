package uploadcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gradeflow:upload:"

// RedisCache shares cached upload handles across processes so a horizontally
// scaled grader fleet still uploads each unique payload once.
type RedisCache struct {
	rdb redis.UniversalClient
}

func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("upload cache get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("upload cache decode: %w", err)
	}
	return &e, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("upload cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("upload cache set: %w", err)
	}
	return nil
}
