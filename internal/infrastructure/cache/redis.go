// Package cache opens the redis client shared by member locks, the
// idempotency store, snapshot caching and event publishing.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// PingTimeout bounds the startup check; zero means 5s.
	PingTimeout time.Duration
}

func OpenRedis(o Options) (*redis.Client, error) {
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	r := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.PingTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), o.PingTimeout)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis %s: %w", o.Addr, err)
	}
	return r, nil
}
