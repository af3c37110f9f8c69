package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/redis/go-redis/v9"
)

// SummaryCache holds summaries of closed days. Closed days only change when
// purged, which invalidates the entry.
type SummaryCache interface {
	Get(ctx context.Context, date civil.Date) (*DaySummary, bool, error)
	Set(ctx context.Context, sum *DaySummary) error
	Invalidate(ctx context.Context, date civil.Date) error
}

type NopCache struct{}

func (NopCache) Get(context.Context, civil.Date) (*DaySummary, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, *DaySummary) error                     { return nil }
func (NopCache) Invalidate(context.Context, civil.Date) error               { return nil }

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func summaryKey(date civil.Date) string {
	return "ledger:summary:" + date.String()
}

func (c *RedisCache) Get(ctx context.Context, date civil.Date) (*DaySummary, bool, error) {
	raw, err := c.client.Get(ctx, summaryKey(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var sum DaySummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, false, err
	}
	return &sum, true, nil
}

func (c *RedisCache) Set(ctx context.Context, sum *DaySummary) error {
	raw, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(sum.Date), raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, date civil.Date) error {
	return c.client.Del(ctx, summaryKey(date)).Err()
}
