package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points ENV_FILE at a missing file so a developer .env never leaks in.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "Europe/Moscow", cfg.App.Location.String())
	assert.False(t, cfg.Database.Configured())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, 8, cfg.Scheduler.Concurrency)
	assert.Equal(t, 3, cfg.Scheduler.MinStreak)
	assert.True(t, cfg.Scheduler.JobEnabled("daily_summary"))
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.ScheduleFor("daily_summary", "0 9 * * *"))
}

func TestLoad_RequiresToken(t *testing.T) {
	isolate(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")

	_, err = LoadWithoutToken()
	assert.NoError(t, err)
}

func TestLoad_AggregatesErrors(t *testing.T) {
	isolate(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ADMIN_TOKEN_HASH", "plain-text")

	_, err := Load()
	require.Error(t, err)
	for _, part := range []string{"TELEGRAM_BOT_TOKEN", "APP_TIMEZONE", "DATABASE_URL", "ADMIN_TOKEN_HASH"} {
		assert.Contains(t, err.Error(), part)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TQ_TEST_DOTENV_TOKEN=from-file\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("TQ_TEST_DOTENV_TOKEN") })

	_, err := LoadWithoutToken()
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("TQ_TEST_DOTENV_TOKEN"))
}

func TestLoad_SchedulerFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
concurrency: 4
min_streak: 5
job_timeout: 2m
jobs:
  daily_summary:
    schedule: "0 8 * * 1-5"
  weekly_stats:
    enabled: false
`), 0o600))
	t.Setenv("SCHEDULER_FILE", path)
	t.Setenv("SCHEDULER_DISABLED_JOBS", "streak_reminder, ")

	cfg, err := LoadWithoutToken()
	require.NoError(t, err)

	s := cfg.Scheduler
	assert.Equal(t, 4, s.Concurrency)
	assert.Equal(t, 5, s.MinStreak)
	assert.Equal(t, 2*time.Minute, s.JobTimeout)
	assert.Equal(t, "0 8 * * 1-5", s.ScheduleFor("daily_summary", "0 9 * * *"))
	assert.Equal(t, "@every 1h", s.ScheduleFor("check_overdue_tasks", "@every 1h"))
	assert.False(t, s.JobEnabled("weekly_stats"))
	assert.False(t, s.JobEnabled("streak_reminder"))
	assert.True(t, s.JobEnabled("daily_summary"))
}

func TestLoad_SchedulerFileInvalidSchedule(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  daily_summary:\n    schedule: \"61 * * * *\"\n"), 0o600))
	t.Setenv("SCHEDULER_FILE", path)

	_, err := LoadWithoutToken()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_summary")
}

func TestLoad_SchedulerFileMissing(t *testing.T) {
	isolate(t)
	t.Setenv("SCHEDULER_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadWithoutToken()
	assert.Error(t, err)
}

func TestGetEnvInt64Slice(t *testing.T) {
	t.Setenv("TQ_IDS", "1, 2,x,,3")
	assert.Equal(t, []int64{1, 2, 3}, getEnvInt64Slice("TQ_IDS", nil))
}
