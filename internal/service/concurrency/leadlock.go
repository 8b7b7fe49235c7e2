package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// LeadLocker serializes queue mutations per (campaign, lead) key. Mutations
// for different leads proceed in parallel.
type LeadLocker interface {
	WithLock(ctx context.Context, campaignID, leadID uuid.UUID, fn func(ctx context.Context) error) error
}

// RedisLeadLock implements LeadLocker with Redis SET NX tokens, so the
// serialization holds across processes (API, worker, scheduler).
type RedisLeadLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLeadLock constructs a lock manager.
func NewRedisLeadLock(client *redis.Client, ttl time.Duration) *RedisLeadLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLeadLock{client: client, ttl: ttl}
}

// releaseScript deletes the lock only if the holder's token still matches.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// WithLock runs fn while holding the lead's lock, polling until the lock is
// acquired or the context expires.
func (l *RedisLeadLock) WithLock(ctx context.Context, campaignID, leadID uuid.UUID, fn func(ctx context.Context) error) error {
	key := l.key(campaignID, leadID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("lead lock: acquire: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lead lock: acquire: %w", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Result()
	}()

	return fn(ctx)
}

func (l *RedisLeadLock) key(campaignID, leadID uuid.UUID) string {
	return fmt.Sprintf("dialflo:retry:lead:%s:%s", campaignID.String(), leadID.String())
}

// LocalLeadLock is an in-process LeadLocker for tests and single-node demo
// runs.
type LocalLeadLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLeadLock constructs an in-process lock manager.
func NewLocalLeadLock() *LocalLeadLock {
	return &LocalLeadLock{locks: make(map[string]*sync.Mutex)}
}

// WithLock runs fn while holding the lead's in-process mutex.
func (l *LocalLeadLock) WithLock(ctx context.Context, campaignID, leadID uuid.UUID, fn func(ctx context.Context) error) error {
	key := campaignID.String() + ":" + leadID.String()

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
