// Package middleware contains Telegram bot middlewares for update processing.
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/pkg/textfmt"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// Per-user token bucket with a temporary ban for repeated violations.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the refill rate of a user's bucket.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// CleanupInterval is how often idle buckets and expired bans are dropped.
	CleanupInterval time.Duration

	// BanDuration is how long a user is blocked after BanThreshold violations
	// within five minutes.
	BanDuration  time.Duration
	BanThreshold int

	// WhitelistedUsers are never limited.
	WhitelistedUsers map[int64]bool

	Clock timeutil.Clock
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         8,
		CleanupInterval:   5 * time.Minute,
		BanDuration:       10 * time.Minute,
		BanThreshold:      5,
		WhitelistedUsers:  make(map[int64]bool),
	}
}

const violationWindow = 5 * time.Minute

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	IsBanned   bool
}

// Message is the text sent to a limited user.
func (r RateLimitResult) Message() string {
	seconds := int(r.RetryAfter.Round(time.Second) / time.Second)
	wait := textfmt.Count(seconds, "секунду", "секунды", "секунд")
	if seconds >= 60 {
		wait = textfmt.Count(seconds/60, "минуту", "минуты", "минут")
	}
	return fmt.Sprintf("⏳ Слишком много запросов!\n\nПодожди %s и попробуй снова.", wait)
}

// RateLimiter implements per-user rate limiting.
type RateLimiter struct {
	config RateLimitConfig
	now    timeutil.Clock

	mu      sync.Mutex
	buckets map[int64]*tokenBucket
	bans    map[int64]time.Time
}

type tokenBucket struct {
	tokens       float64
	lastRefill   time.Time
	violations   int
	lastViolated time.Time
}

// NewRateLimiter creates a new rate limiter. Call Run to enable cleanup.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = def.BurstSize
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.BanThreshold <= 0 {
		config.BanThreshold = def.BanThreshold
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock()
	}
	return &RateLimiter{
		config:  config,
		now:     config.Clock,
		buckets: make(map[int64]*tokenBucket),
		bans:    make(map[int64]time.Time),
	}
}

func (rl *RateLimiter) refillRate() float64 {
	return float64(rl.config.RequestsPerMinute) / 60.0
}

// Check consumes one token for telegramID.
func (rl *RateLimiter) Check(_ context.Context, telegramID int64) RateLimitResult {
	if rl.config.WhitelistedUsers[telegramID] {
		return RateLimitResult{Allowed: true}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()

	if until, ok := rl.bans[telegramID]; ok {
		if now.Before(until) {
			return RateLimitResult{RetryAfter: until.Sub(now), IsBanned: true}
		}
		delete(rl.bans, telegramID)
	}

	b, ok := rl.buckets[telegramID]
	if !ok {
		b = &tokenBucket{tokens: float64(rl.config.BurstSize), lastRefill: now}
		rl.buckets[telegramID] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.refillRate()
	if max := float64(rl.config.BurstSize); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return RateLimitResult{Allowed: true}
	}

	if now.Sub(b.lastViolated) > violationWindow {
		b.violations = 0
	}
	b.violations++
	b.lastViolated = now

	if rl.config.BanDuration > 0 && b.violations >= rl.config.BanThreshold {
		rl.bans[telegramID] = now.Add(rl.config.BanDuration)
		return RateLimitResult{RetryAfter: rl.config.BanDuration, IsBanned: true}
	}

	wait := time.Duration((1 - b.tokens) / rl.refillRate() * float64(time.Second))
	return RateLimitResult{RetryAfter: wait}
}

// Reset forgets a user's bucket and ban.
func (rl *RateLimiter) Reset(telegramID int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, telegramID)
	delete(rl.bans, telegramID)
}

// Run drops idle buckets and expired bans until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()

	// A bucket idle this long is full again, so dropping it changes nothing.
	idle := time.Duration(float64(rl.config.BurstSize)/rl.refillRate()*float64(time.Second)) + violationWindow
	for id, b := range rl.buckets {
		if now.Sub(b.lastRefill) > idle {
			delete(rl.buckets, id)
		}
	}
	for id, until := range rl.bans {
		if !now.Before(until) {
			delete(rl.bans, id)
		}
	}
}
