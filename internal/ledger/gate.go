package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// CloseGate serializes close attempts for a day across processes. It is only
// an optimization; the day row lock decides who closes.
type CloseGate interface {
	Acquire(ctx context.Context, dayID uint) (release func(), err error)
}

type NopGate struct{}

func (NopGate) Acquire(context.Context, uint) (func(), error) { return func() {}, nil }

type RedisGate struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisGate(locker *redislock.Client, ttl time.Duration) *RedisGate {
	return &RedisGate{locker: locker, ttl: ttl}
}

func (g *RedisGate) Acquire(ctx context.Context, dayID uint) (func(), error) {
	lock, err := g.locker.Obtain(ctx, fmt.Sprintf("lock:ledger:close:%d", dayID), g.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		// The lock expires on its own if release fails.
		_ = lock.Release(context.Background())
	}, nil
}
