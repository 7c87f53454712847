package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "docverify/pkg/domain"
)

// Cache keeps recent scan results. A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, requestID id.RequestID, mode Mode) (*Result, error)
	Set(ctx context.Context, res Result) error
}

type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(requestID id.RequestID, mode Mode) string {
	return fmt.Sprintf("docverify:scan:%s:%s", mode, requestID)
}

func (c *RedisCache) Get(ctx context.Context, requestID id.RequestID, mode Mode) (*Result, error) {
	raw, err := c.client.Get(ctx, cacheKey(requestID, mode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache get: %w", err)
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("scan cache decode: %w", err)
	}
	return &res, nil
}

func (c *RedisCache) Set(ctx context.Context, res Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("scan cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(res.RequestID, res.Mode), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("scan cache set: %w", err)
	}
	return nil
}
