package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache хранит таблицу лидеров в sorted set.
//
// Ключи:
//   - "{prefix}leaderboard:xp" - member = id пользователя (20 цифр), score = -xp
//   - "{prefix}leaderboard:ready" - отметка, что набор построен целиком
//
// Отрицательный score и дополненный нулями id дают порядок ZRANGE
// "xp по убыванию, затем id по возрастанию" без сортировки на клиенте.
type LeaderboardCache struct {
	cache    *Cache
	readyTTL time.Duration
}

var _ gamification.LeaderboardCache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a LeaderboardCache. readyTTL <= 0 uses TTLLeaderboardReady.
func NewLeaderboardCache(cache *Cache, readyTTL time.Duration) *LeaderboardCache {
	if readyTTL <= 0 {
		readyTTL = TTLLeaderboardReady
	}
	return &LeaderboardCache{cache: cache, readyTTL: readyTTL}
}

func (l *LeaderboardCache) setKey() string   { return l.cache.Key("leaderboard", "xp") }
func (l *LeaderboardCache) readyKey() string { return l.cache.Key("leaderboard", "ready") }

// member encodes a user id so that lexicographic order equals numeric order.
func member(id shared.UserID) string {
	return fmt.Sprintf("%020d", int64(id))
}

func parseMember(m string) (shared.UserID, error) {
	id, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: bad leaderboard member %q: %w", m, err)
	}
	return shared.UserID(id), nil
}

func scoreOf(s gamification.Score) redis.Z {
	return redis.Z{Score: -float64(s.XP), Member: member(s.UserID)}
}

// Update writes the current XP of one user. XP only grows and the score is
// -xp, so ZADD LT drops a write that arrives after a newer one.
func (l *LeaderboardCache) Update(ctx context.Context, s gamification.Score) error {
	if err := l.cache.Client().ZAddLT(ctx, l.setKey(), scoreOf(s)).Err(); err != nil {
		return fmt.Errorf("redis: leaderboard update: %w", err)
	}
	return nil
}

// Top returns gamification.ErrCacheMiss until Rebuild has run.
func (l *LeaderboardCache) Top(ctx context.Context, limit int) ([]gamification.Score, error) {
	if limit <= 0 {
		return nil, nil
	}

	client := l.cache.Client()
	ready, err := client.Exists(ctx, l.readyKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard ready: %w", err)
	}
	if ready == 0 {
		return nil, gamification.ErrCacheMiss
	}

	zs, err := client.ZRangeWithScores(ctx, l.setKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard top: %w", err)
	}

	out := make([]gamification.Score, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("redis: unexpected leaderboard member %T", z.Member)
		}
		id, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		out = append(out, gamification.Score{UserID: id, XP: int(-z.Score)})
	}
	return out, nil
}

// Rebuild replaces the whole set in one MULTI/EXEC and marks it ready.
func (l *LeaderboardCache) Rebuild(ctx context.Context, scores []gamification.Score) error {
	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, l.setKey())

	if len(scores) > 0 {
		zs := make([]redis.Z, len(scores))
		for i, s := range scores {
			zs[i] = scoreOf(s)
		}
		pipe.ZAdd(ctx, l.setKey(), zs...)
	}
	pipe.Set(ctx, l.readyKey(), time.Now().UTC().Format(time.RFC3339), l.readyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: leaderboard rebuild: %w", err)
	}
	return nil
}

// Invalidate drops the ready mark so reads fall back to the store.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	return l.cache.Client().Del(ctx, l.readyKey()).Err()
}
