package gamification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	domain "github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/progression"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

type fixture struct {
	store  *memory.Store
	engine *Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	f.engine = NewEngine(f.store, Config{
		Clock:  func() time.Time { return f.now },
		Logger: logger.Nop(),
	})
	return f
}

func (f *fixture) user(t *testing.T, tgID int64) shared.UserID {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{TelegramID: tgID, FirstName: "U"})
	require.NoError(t, err)
	stored, _, err := f.store.GetOrCreate(context.Background(), u)
	require.NoError(t, err)
	return stored.ID
}

func TestAddXP_UnknownUserIsNeutral(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.AddXP(context.Background(), 42, 100, "test")
	require.NoError(t, err)
	assert.Equal(t, XPResult{}, res)

	streak, err := f.engine.UpdateStreak(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, user.StreakResult{}, streak)
}

func TestAddXP_MaxTierLevelsUp(t *testing.T) {
	f := newFixture(t)
	id := f.user(t, 1)

	res, err := f.engine.AddXP(context.Background(), id, 105, "task")
	require.NoError(t, err)
	assert.Equal(t, XPResult{NewXP: 105, NewLevel: 2, LeveledUp: true}, res)

	res, err = f.engine.AddXP(context.Background(), id, -50, "ignored")
	require.NoError(t, err)
	assert.Equal(t, XPResult{NewXP: 105, NewLevel: 2}, res)
}

func TestAddXP_ConcurrentGrantsAreSerialized(t *testing.T) {
	f := newFixture(t)
	id := f.user(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.AddXP(context.Background(), id, 10, "task")
		}()
	}
	wg.Wait()

	stats, err := f.engine.GetUserStats(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 500, stats.XP)
	assert.Equal(t, 3, stats.Level)
}

func TestUpdateStreak_SameDayAndGap(t *testing.T) {
	f := newFixture(t)
	id := f.user(t, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.engine.UpdateStreak(ctx, id)
		require.NoError(t, err)
		f.now = f.now.Add(24 * time.Hour)
	}

	res, err := f.engine.UpdateStreak(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewStreak)

	again, err := f.engine.UpdateStreak(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, again.NewStreak)

	f.now = f.now.Add(72 * time.Hour)
	lost, err := f.engine.UpdateStreak(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.StreakResult{NewStreak: 1, OldStreak: 4, Lost: true}, lost)

	stats, err := f.engine.GetUserStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.MaxStreak)
	assert.Equal(t, 1, stats.CurrentStreak)
}

func TestCheckAndUnlockAchievements_Idempotent(t *testing.T) {
	f := newFixture(t)
	id := f.user(t, 1)
	ctx := context.Background()

	_, err := f.engine.IncrementCreated(ctx, id)
	require.NoError(t, err)

	first, err := f.engine.CheckAndUnlockAchievements(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, []achievement.ID{achievement.FirstTask}, first)

	second, err := f.engine.CheckAndUnlockAchievements(ctx, id, nil)
	require.NoError(t, err)
	assert.Empty(t, second)

	// check does not grant xp
	stats, err := f.engine.GetUserStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.XP)
	assert.Equal(t, 1, stats.AchievementsUnlocked)
}

func TestUnlockAchievement(t *testing.T) {
	f := newFixture(t)
	id := f.user(t, 1)
	ctx := context.Background()

	ok, err := f.engine.UnlockAchievement(ctx, id, achievement.NightOwl)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.UnlockAchievement(ctx, id, achievement.NightOwl)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.engine.UnlockAchievement(ctx, id, "unknown")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyAchievementRewards(t *testing.T) {
	f := newFixture(t)
	id := f.user(t, 1)

	res, err := f.engine.ApplyAchievementRewards(context.Background(), id,
		[]achievement.ID{achievement.FirstTask, achievement.TaskMaster10, achievement.Streak3})
	require.NoError(t, err)
	assert.Equal(t, 90, res.NewXP)
	assert.False(t, res.LeveledUp)
}

func TestGetUserStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.GetUserStats(ctx, 77)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	id := f.user(t, 1)
	_, err = f.engine.IncrementCompleted(ctx, id)
	require.NoError(t, err)
	_, err = f.engine.AddXP(ctx, id, 150, "task")
	require.NoError(t, err)

	stats, err := f.engine.GetUserStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TasksToday)
	assert.Equal(t, 100, stats.XPForCurrentLevel)
	assert.Equal(t, 300, stats.XPForNextLevel)
	assert.Equal(t, achievement.Count(), stats.AchievementsTotal)
	assert.Equal(t, "Новичок", stats.Title)
	cur, need := stats.LevelProgress()
	assert.Equal(t, 50, cur)
	assert.Equal(t, 200, need)

	f.now = f.now.Add(24 * time.Hour)
	stats, err = f.engine.GetUserStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TasksToday)
}

func TestGetLeaderboard_TieBreakAndSequentialRanks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, 1), f.user(t, 2), f.user(t, 3)

	_, _ = f.engine.AddXP(ctx, c, 100, "x")
	_, _ = f.engine.AddXP(ctx, b, 300, "x")
	_, _ = f.engine.AddXP(ctx, a, 300, "x")

	entries, err := f.engine.GetLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, []shared.UserID{a, b, c}, []shared.UserID{entries[0].UserID, entries[1].UserID, entries[2].UserID})
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, 3, entries[0].Level)
	assert.Equal(t, progression.LevelFromXP(300), entries[1].Level)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 10, NormalizeLimit(0))
	assert.Equal(t, 10, NormalizeLimit(-4))
	assert.Equal(t, 100, NormalizeLimit(1000))
	assert.Equal(t, 25, NormalizeLimit(25))
}

// fakeCache is an in-memory LeaderboardCache. Like the Redis one it never
// lowers a stored score.
type fakeCache struct {
	mu     sync.Mutex
	built  bool
	scores map[shared.UserID]int
}

func (c *fakeCache) Update(_ context.Context, s domain.Score) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scores == nil {
		c.scores = map[shared.UserID]int{}
	}
	if cur, ok := c.scores[s.UserID]; !ok || s.XP > cur {
		c.scores[s.UserID] = s.XP
	}
	return nil
}

func (c *fakeCache) Top(_ context.Context, limit int) ([]domain.Score, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.built {
		return nil, domain.ErrCacheMiss
	}
	out := make([]domain.Score, 0, len(c.scores))
	for id, xp := range c.scores {
		out = append(out, domain.Score{UserID: id, XP: xp})
	}
	memory.SortScores(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCache) Rebuild(_ context.Context, scores []domain.Score) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores = map[shared.UserID]int{}
	for _, s := range scores {
		c.scores[s.UserID] = s.XP
	}
	c.built = true
	return nil
}

func TestLeaderboard_ReadsThroughCache(t *testing.T) {
	store := memory.New()
	cache := &fakeCache{}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(store, Config{Cache: cache, Clock: func() time.Time { return now }, Logger: logger.Nop()})
	ctx := context.Background()

	u1, _ := user.NewUser(user.NewUserParams{TelegramID: 1})
	s1, _, _ := store.GetOrCreate(ctx, u1)
	_, _ = engine.AddXP(ctx, s1.ID, 40, "x")

	// not built yet: falls back to the store
	entries, err := engine.GetLeaderboard(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	n, err := engine.RebuildLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _ = engine.AddXP(ctx, s1.ID, 10, "x")
	entries, err = engine.GetLeaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 50, entries[0].XP)
	assert.Equal(t, 50, cache.scores[s1.ID])
}

// stalledCache holds the first Update until a later one has been written,
// so the cache sees a user's scores out of commit order.
type stalledCache struct {
	*fakeCache
	once    sync.Once
	first   chan struct{}
	release chan struct{}
}

func (c *stalledCache) Update(ctx context.Context, s domain.Score) error {
	stalled := false
	c.once.Do(func() { stalled = true })
	if stalled {
		close(c.first)
		<-c.release
	} else {
		defer close(c.release)
	}
	return c.fakeCache.Update(ctx, s)
}

func TestLeaderboard_CacheIgnoresOutOfOrderUpdates(t *testing.T) {
	store := memory.New()
	cache := &stalledCache{fakeCache: &fakeCache{}, first: make(chan struct{}), release: make(chan struct{})}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(store, Config{Cache: cache, Clock: func() time.Time { return now }, Logger: logger.Nop()})
	ctx := context.Background()

	u, _ := user.NewUser(user.NewUserParams{TelegramID: 1})
	stored, _, _ := store.GetOrCreate(ctx, u)
	_, err := engine.RebuildLeaderboard(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.AddXP(ctx, stored.ID, 100, "first")
	}()
	<-cache.first

	res, err := engine.AddXP(ctx, stored.ID, 100, "second")
	require.NoError(t, err)
	assert.Equal(t, 200, res.NewXP)
	<-done

	entries, err := engine.GetLeaderboard(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 200, entries[0].XP)
}
