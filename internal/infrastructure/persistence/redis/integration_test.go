package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
)

var (
	testClient  *goredis.Client
	dockerError error
)

func TestMain(m *testing.M) {
	os.Exit(runWithRedis(m))
}

// runWithRedis starts redis:7-alpine when Docker is reachable.
func runWithRedis(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err == nil {
		err = pool.Client.Ping()
	}
	if err != nil {
		dockerError = err
		return m.Run()
	}
	pool.MaxWait = time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("could not start redis: %s", err)
	}
	defer func() {
		if err := pool.Purge(resource); err != nil {
			log.Printf("could not purge redis: %s", err)
		}
	}()
	_ = resource.Expire(120)

	client := goredis.NewClient(&goredis.Options{Addr: resource.GetHostPort("6379/tcp")})
	err = pool.Retry(func() error {
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		log.Printf("redis did not become ready: %s", err)
		return 1
	}
	defer client.Close()

	testClient = client
	return m.Run()
}

// freshCache returns a cache under a per-test prefix.
func freshCache(t *testing.T) *Cache {
	t.Helper()
	if testClient == nil {
		t.Skipf("docker unavailable: %v", dockerError)
	}
	return NewCacheFromClient(testClient, fmt.Sprintf("test:%s:", t.Name()))
}

func TestLeaderboardCache_MissUntilRebuilt(t *testing.T) {
	ctx := context.Background()
	lb := NewLeaderboardCache(freshCache(t), time.Minute)

	_, err := lb.Top(ctx, 10)
	assert.ErrorIs(t, err, gamification.ErrCacheMiss)

	require.NoError(t, lb.Rebuild(ctx, []gamification.Score{{UserID: 2, XP: 300}, {UserID: 1, XP: 300}, {UserID: 3, XP: 50}}))
	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []gamification.Score{{UserID: 1, XP: 300}, {UserID: 2, XP: 300}, {UserID: 3, XP: 50}}, top)

	require.NoError(t, lb.Invalidate(ctx))
	_, err = lb.Top(ctx, 10)
	assert.ErrorIs(t, err, gamification.ErrCacheMiss)
}

func TestLeaderboardCache_StaleUpdateDoesNotLowerXP(t *testing.T) {
	ctx := context.Background()
	lb := NewLeaderboardCache(freshCache(t), time.Minute)
	require.NoError(t, lb.Rebuild(ctx, []gamification.Score{{UserID: 1, XP: 100}}))

	require.NoError(t, lb.Update(ctx, gamification.Score{UserID: 1, XP: 200}))
	require.NoError(t, lb.Update(ctx, gamification.Score{UserID: 1, XP: 150}))
	require.NoError(t, lb.Update(ctx, gamification.Score{UserID: 7, XP: 10}))

	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []gamification.Score{{UserID: 1, XP: 200}, {UserID: 7, XP: 10}}, top)
}

func TestJobLock_OnlyOwnerReleases(t *testing.T) {
	ctx := context.Background()
	lock := NewJobLock(freshCache(t), time.Minute)

	ok, err := lock.Acquire(ctx, "daily_summary", "run-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, "daily_summary", "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "daily_summary", "run-b"))
	ok, err = lock.Acquire(ctx, "daily_summary", "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "daily_summary", "run-a"))
	ok, err = lock.Acquire(ctx, "daily_summary", "run-b")
	require.NoError(t, err)
	assert.True(t, ok)
}
