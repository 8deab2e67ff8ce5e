package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB LOCK
// ══════════════════════════════════════════════════════════════════════════════

// JobLock - распределённая блокировка запусков заданий (SET NX PX).
// Снимается только владельцем: значение ключа - run id.
type JobLock struct {
	cache *Cache
	ttl   time.Duration
}

// NewJobLock creates a JobLock. ttl <= 0 uses TTLJobLock.
func NewJobLock(cache *Cache, ttl time.Duration) *JobLock {
	if ttl <= 0 {
		ttl = TTLJobLock
	}
	return &JobLock{cache: cache, ttl: ttl}
}

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *JobLock) key(job string) string {
	return l.cache.Key("lock", "job", job)
}

// Acquire returns false when another instance holds the lock.
func (l *JobLock) Acquire(ctx context.Context, job, token string) (bool, error) {
	if job == "" {
		return false, ErrCacheKeyEmpty
	}
	ok, err := l.cache.Client().SetNX(ctx, l.key(job), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire job lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock if token still owns it.
func (l *JobLock) Release(ctx context.Context, job, token string) error {
	if err := unlockScript.Run(ctx, l.cache.Client(), []string{l.key(job)}, token).Err(); err != nil {
		return fmt.Errorf("redis: release job lock: %w", err)
	}
	return nil
}
