package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	reminders *query.Reminders
	recorder  *notification.Recorder
	cfg       Config
}

func newFixture() *fixture {
	s := memory.New()
	return &fixture{
		store:     s,
		reminders: query.NewReminders(s, timeutil.Fixed(now), time.UTC),
		recorder:  &notification.Recorder{},
		cfg:       Config{Concurrency: 2, Location: time.UTC, Logger: logger.Nop()},
	}
}

func (f *fixture) user(t *testing.T, tgID int64) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{TelegramID: tgID, FirstName: "U", Now: now})
	require.NoError(t, err)
	stored, _, err := f.store.GetOrCreate(context.Background(), u)
	require.NoError(t, err)
	return stored
}

func (f *fixture) task(t *testing.T, owner shared.UserID, title string, priority int, due *time.Time) *task.Task {
	t.Helper()
	tk, err := task.NewTask(task.NewTaskParams{UserID: owner, Title: title, Priority: priority, DueDate: due, Now: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), tk))
	return tk
}

func (f *fixture) streak(t *testing.T, id shared.UserID, streak int, last timeutil.Date) {
	t.Helper()
	require.NoError(t, f.store.WithUserLock(context.Background(), id, func(tx gamification.Tx, p *user.Progress) error {
		p.CurrentStreak = streak
		p.MaxStreak = streak
		p.LastCompletedDate = last
		return tx.SaveProgress(context.Background(), *p)
	}))
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestUpcomingDeadlines_SendsOnceAndMarks(t *testing.T) {
	f := newFixture()
	u := f.user(t, 100)
	soon := f.task(t, u.ID, "Сдать <отчёт>", 7, at(3*time.Hour))
	f.task(t, u.ID, "Потом", 5, at(48*time.Hour))

	job := NewUpcomingDeadlinesJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(100), msgs[0].ChatID)
	assert.Equal(t, notification.KindUpcomingDeadline, msgs[0].Kind)
	assert.Contains(t, msgs[0].Text, "Сдать &lt;отчёт&gt;")
	assert.Contains(t, msgs[0].Text, "3 часа")
	assert.Equal(t, notification.WithID(notification.PrefixDone, soon.ID.Int64()), msgs[0].Buttons[0][0].CallbackData)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Sent)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, f.recorder.Messages(), 1)
}

func TestUpcomingDeadlines_FailedSendKeepsFlag(t *testing.T) {
	f := newFixture()
	a := f.user(t, 1)
	b := f.user(t, 2)
	f.task(t, a.ID, "A", 5, at(time.Hour))
	f.task(t, b.ID, "B", 5, at(2*time.Hour))

	f.recorder.Fail = func(m notification.Message) error {
		if m.ChatID == 1 {
			return errors.New("blocked by user")
		}
		return nil
	}
	job := NewUpcomingDeadlinesJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)

	items, err := f.reminders.TasksForUpcomingReminder(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].Owner.ID)
}

func TestOverdueTasks_SkipsOptedOutUsers(t *testing.T) {
	f := newFixture()
	on := f.user(t, 1)
	off := f.user(t, 2)
	require.NoError(t, f.store.SetRemindersEnabled(context.Background(), off.ID, false))
	f.task(t, on.ID, "Late", 5, at(-30*time.Hour))
	f.task(t, off.ID, "Quiet", 5, at(-30*time.Hour))

	job := NewOverdueTasksJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "вчера")

	items, err := f.reminders.OverdueTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDailySummary_Buckets(t *testing.T) {
	f := newFixture()
	u := f.user(t, 7)
	f.task(t, u.ID, "Просрочка", 5, at(-50*time.Hour))
	f.task(t, u.ID, "Сегодня", 9, at(6*time.Hour))
	f.task(t, u.ID, "Когда-нибудь", 2, nil)
	f.user(t, 8)

	job := NewDailySummaryJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	text := msgs[0].Text
	assert.Contains(t, text, "Просрочено (1)")
	assert.Contains(t, text, "Просрочка (-2 дн.)")
	assert.Contains(t, text, "На сегодня (1)")
	assert.Contains(t, text, "Сегодня ❗")
	assert.NotContains(t, text, "Предстоящие")
	assert.Contains(t, text, "Активных задач: 3")
	assert.Contains(t, text, "Начни с просроченных")
	assert.Equal(t, notification.CallbackBackToList, msgs[0].Buttons[0][0].CallbackData)
}

func TestDailySummary_UpcomingFollowsDigestOrder(t *testing.T) {
	f := newFixture()
	u := f.user(t, 7)
	f.task(t, u.ID, "Мелочь", 2, at(48*time.Hour))
	f.task(t, u.ID, "Важное позже", 9, at(72*time.Hour))
	f.task(t, u.ID, "Важное без срока", 9, nil)
	f.task(t, u.ID, "Среднее", 5, at(30*time.Hour))

	job := NewDailySummaryJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	text := msgs[0].Text
	require.Contains(t, text, "Предстоящие")

	first := strings.Index(text, "Важное позже")
	second := strings.Index(text, "Важное без срока")
	third := strings.Index(text, "Среднее")
	require.True(t, first >= 0 && second >= 0 && third >= 0, text)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.NotContains(t, text, "Мелочь")
	assert.Contains(t, text, "Активных задач: 4")
}

func TestStreakReminder_MinStreak(t *testing.T) {
	f := newFixture()
	yesterday := timeutil.DateOf(now, time.UTC).AddDays(-1)
	long := f.user(t, 1)
	short := f.user(t, 2)
	done := f.user(t, 3)
	f.streak(t, long.ID, 5, yesterday)
	f.streak(t, short.ID, 2, yesterday)
	f.streak(t, done.ID, 9, timeutil.DateOf(now, time.UTC))

	job := NewStreakReminderJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "5 дней")
	assert.Equal(t, 1, job.LastRunStats().Skipped)
}

func TestWeeklyStats_AllActiveUsers(t *testing.T) {
	f := newFixture()
	busy := f.user(t, 1)
	f.user(t, 2)
	require.NoError(t, f.store.WithUserLock(context.Background(), busy.ID, func(tx gamification.Tx, p *user.Progress) error {
		return tx.RecordXP(context.Background(), 55, "task", now.Add(-time.Hour))
	}))

	job := NewWeeklyStatsJob(f.reminders, f.recorder, f.cfg)
	require.NoError(t, job.Run(context.Background()))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 2)
	byChat := map[int64]string{}
	for _, m := range msgs {
		byChat[m.ChatID] = m.Text
	}
	assert.Contains(t, byChat[1], "XP за неделю: +55")
	assert.True(t, strings.Contains(byChat[2], "Новая неделя"))
}

type rebuilderFunc func(ctx context.Context) (int, error)

func (f rebuilderFunc) RebuildLeaderboard(ctx context.Context) (int, error) { return f(ctx) }

func TestRebuildLeaderboard(t *testing.T) {
	job := NewRebuildLeaderboardJob(rebuilderFunc(func(context.Context) (int, error) { return 3, nil }), logger.Nop())
	assert.Nil(t, job.LastRebuildStats())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, job.LastRebuildStats().Users)

	failing := NewRebuildLeaderboardJob(rebuilderFunc(func(context.Context) (int, error) { return 0, errors.New("redis down") }), logger.Nop())
	assert.Error(t, failing.Run(context.Background()))
}

func TestFanOut_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := fanOut(ctx, 1, []int{1, 2, 3}, func(context.Context, int) outcome { return sent })
	assert.Equal(t, 3, stats.Candidates)
	assert.Equal(t, stats.Candidates, stats.Sent+stats.Skipped)
}

func TestFanOut_PanicCountsAsFailure(t *testing.T) {
	stats := fanOut(context.Background(), 2, []int{1, 2, 3, 4}, func(_ context.Context, n int) outcome {
		if n == 2 {
			panic("bad recipient")
		}
		return sent
	})
	assert.Equal(t, 4, stats.Candidates)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Skipped)
}
