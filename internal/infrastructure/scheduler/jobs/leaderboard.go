package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRebuilder reloads the leaderboard cache from the store.
// It is implemented by *gamification.Engine.
type LeaderboardRebuilder interface {
	RebuildLeaderboard(ctx context.Context) (int, error)
}

// RebuildStats contains statistics from one rebuild.
type RebuildStats struct {
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Users       int           `json:"users"`
}

// RebuildLeaderboardJob periodically replaces the cached ranking with the stored one,
// repairing any drift from failed incremental updates.
type RebuildLeaderboardJob struct {
	rebuilder LeaderboardRebuilder
	logger    *slog.Logger
	last      atomic.Pointer[RebuildStats]
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(rebuilder LeaderboardRebuilder, log *slog.Logger) *RebuildLeaderboardJob {
	if log == nil {
		log = slog.Default()
	}
	return &RebuildLeaderboardJob{rebuilder: rebuilder, logger: log}
}

func (j *RebuildLeaderboardJob) Name() string { return NameRebuildLeaderboard }

func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the cached XP leaderboard from the database"
}

func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	log := runLogger(ctx, j.logger, j.Name())
	started := time.Now()

	n, err := j.rebuilder.RebuildLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}

	stats := &RebuildStats{CompletedAt: time.Now(), Duration: time.Since(started), Users: n}
	j.last.Store(stats)
	log.Info("leaderboard rebuilt", slog.Int("users", n), logger.Latency(stats.Duration))
	return nil
}

// LastRebuildStats returns statistics from the last successful rebuild, nil before it.
func (j *RebuildLeaderboardJob) LastRebuildStats() *RebuildStats {
	return j.last.Load()
}
