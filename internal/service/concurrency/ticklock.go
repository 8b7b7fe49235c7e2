package concurrency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// TickLock elects a single scheduler replica per tick. Acquire returns
// acquired=false without error when another replica holds the lock.
type TickLock interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// RedisTickLock implements TickLock with a Redis SET NX token.
type RedisTickLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisTickLock constructs a tick lock on the given key.
func NewRedisTickLock(client *redis.Client, key string, ttl time.Duration) *RedisTickLock {
	if key == "" {
		key = "dialflo:retry:scheduler:tick"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisTickLock{client: client, key: key, ttl: ttl}
}

// Acquire attempts to take the lock without waiting.
func (l *RedisTickLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("tick lock: acquire: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Result()
	}
	return release, true, nil
}
