package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"pos-backend/internal/config"
)

// ConnectRedis returns a client and a lock client for addr. It gives up
// after maxConnectAttempts so the server can run without Redis.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, *redislock.Client, error) {
	lg := config.GetLogger()
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 20,
	})

	for attempt := 1; ; attempt++ {
		err := rdb.Ping(ctx).Err()
		if err == nil {
			lg.WithField("addr", addr).Info("connected to redis")
			return rdb, redislock.New(rdb), nil
		}
		if attempt == maxConnectAttempts {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
		}
		sleep := time.Second * time.Duration(1<<attempt)
		lg.WithError(err).WithField("attempt", attempt).Warnf("redis connection failed, retrying in %s", sleep)
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
