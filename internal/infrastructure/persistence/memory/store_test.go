package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func addUser(t *testing.T, s *Store, tgID int64) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{TelegramID: tgID, FirstName: "U", Now: now})
	require.NoError(t, err)
	stored, created, err := s.GetOrCreate(context.Background(), u)
	require.NoError(t, err)
	require.True(t, created)
	return stored
}

func addTask(t *testing.T, s *Store, userID shared.UserID, priority int, due *time.Time, created time.Time) *task.Task {
	t.Helper()
	tk, err := task.NewTask(task.NewTaskParams{UserID: userID, Title: "t", Priority: priority, DueDate: due, Now: created})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), tk))
	return tk
}

func at(d time.Duration) *time.Time {
	v := now.Add(d)
	return &v
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	s := New()
	u := addUser(t, s, 100)

	again, _ := user.NewUser(user.NewUserParams{TelegramID: 100})
	stored, created, err := s.GetOrCreate(context.Background(), again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, stored.ID)
	assert.Equal(t, 1, stored.Progress.Level)
}

func TestTransition_CompletesOnce(t *testing.T) {
	s := New()
	u := addUser(t, s, 1)
	tk := addTask(t, s, u.ID, 5, nil, now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transition(context.Background(), u.ID, tk.ID, task.StatusCompleted, now); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err := s.Transition(context.Background(), u.ID, tk.ID, task.StatusCompleted, now)
	assert.ErrorIs(t, err, shared.ErrTaskAlreadyCompleted)

	_, err = s.Transition(context.Background(), u.ID+1, tk.ID, task.StatusCompleted, now)
	assert.ErrorIs(t, err, shared.ErrTaskNotFound)
}

func TestList_OrderAndPaging(t *testing.T) {
	s := New()
	u := addUser(t, s, 1)
	for i := 0; i < 7; i++ {
		addTask(t, s, u.ID, 5, nil, now.Add(time.Duration(i)*time.Minute))
	}

	page, err := s.List(context.Background(), u.ID, task.ListOptions{Limit: task.PageSize})
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, shared.TaskID(7), page[0].ID)

	rest, err := s.List(context.Background(), u.ID, task.ListOptions{Limit: task.PageSize, Offset: 5})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Equal(t, shared.TaskID(1), rest[1].ID)
}

func TestTasksDueBetween(t *testing.T) {
	s := New()
	u := addUser(t, s, 1)
	optOut := addUser(t, s, 2)
	require.NoError(t, s.SetRemindersEnabled(context.Background(), optOut.ID, false))

	soon := addTask(t, s, u.ID, 5, at(2*time.Hour), now)
	addTask(t, s, u.ID, 5, at(25*time.Hour), now)
	addTask(t, s, u.ID, 5, at(-time.Hour), now)
	addTask(t, s, optOut.ID, 5, at(time.Hour), now)
	first := addTask(t, s, u.ID, 5, at(time.Hour), now)
	edge := addTask(t, s, u.ID, 5, at(24*time.Hour), now)

	got, err := s.TasksDueBetween(context.Background(), now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []shared.TaskID{first.ID, soon.ID, edge.ID},
		[]shared.TaskID{got[0].Task.ID, got[1].Task.ID, got[2].Task.ID})

	require.NoError(t, s.MarkReminderSent(context.Background(), soon.ID))
	got, _ = s.TasksDueBetween(context.Background(), now, now.Add(24*time.Hour))
	assert.Len(t, got, 2)
}

func TestTasksDueBetween_ExactBoundaries(t *testing.T) {
	s := New()
	u := addUser(t, s, 1)

	addTask(t, s, u.ID, 5, at(0), now)
	inside := addTask(t, s, u.ID, 5, at(time.Nanosecond), now)
	edge := addTask(t, s, u.ID, 5, at(24*time.Hour), now)
	addTask(t, s, u.ID, 5, at(24*time.Hour+time.Nanosecond), now)

	got, err := s.TasksDueBetween(context.Background(), now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, inside.ID, got[0].Task.ID)
	assert.Equal(t, edge.ID, got[1].Task.ID)
}

func TestUpdate_LeavesReminderFlags(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := addUser(t, s, 1)
	tk := addTask(t, s, u.ID, 5, at(time.Hour), now)

	stale, err := s.Get(ctx, u.ID, tk.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkReminderSent(ctx, tk.ID))
	require.NoError(t, s.MarkOverdueReminderSent(ctx, tk.ID))

	stale.Title = "renamed"
	require.NoError(t, s.Update(ctx, stale))

	got, err := s.Get(ctx, u.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.True(t, got.ReminderSent)
	assert.True(t, got.OverdueReminderSent)

	require.NoError(t, s.ResetReminderFlags(ctx, tk.ID))
	got, err = s.Get(ctx, u.ID, tk.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)
	assert.False(t, got.OverdueReminderSent)
}

func TestOpenTasksByUser_Ordering(t *testing.T) {
	s := New()
	u := addUser(t, s, 1)
	addUser(t, s, 2)

	noDue := addTask(t, s, u.ID, 8, nil, now)
	late := addTask(t, s, u.ID, 8, at(48*time.Hour), now)
	early := addTask(t, s, u.ID, 8, at(time.Hour), now)
	low := addTask(t, s, u.ID, 2, at(time.Minute), now)
	done := addTask(t, s, u.ID, 10, nil, now)
	_, err := s.Transition(context.Background(), u.ID, done.ID, task.StatusCompleted, now)
	require.NoError(t, err)

	digests, err := s.OpenTasksByUser(context.Background())
	require.NoError(t, err)
	require.Len(t, digests, 1)

	var ids []shared.TaskID
	for _, tk := range digests[0].Tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []shared.TaskID{early.ID, late.ID, noDue.ID, low.ID}, ids)
}

func TestWithUserLock_RollsBackOnError(t *testing.T) {
	s := New()
	u := addUser(t, s, 1)
	boom := errors.New("boom")

	err := s.WithUserLock(context.Background(), u.ID, func(tx gamification.Tx, p *user.Progress) error {
		p.AddXP(500)
		require.NoError(t, tx.SaveProgress(context.Background(), *p))
		_, _ = tx.Unlock(context.Background(), achievement.FirstTask, now)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, _ := s.GetByID(context.Background(), u.ID)
	assert.Equal(t, 0, stored.Progress.XP)
	owned, _ := s.UnlockedAchievements(context.Background(), u.ID)
	assert.Empty(t, owned)

	err = s.WithUserLock(context.Background(), 999, func(gamification.Tx, *user.Progress) error { return nil })
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestUsersWithStreakAtRisk(t *testing.T) {
	s := New()
	today := timeutil.DateOf(now, time.UTC)
	a := addUser(t, s, 1)
	b := addUser(t, s, 2)
	addUser(t, s, 3)

	set := func(id shared.UserID, streak int, last timeutil.Date) {
		require.NoError(t, s.WithUserLock(context.Background(), id, func(tx gamification.Tx, p *user.Progress) error {
			p.CurrentStreak = streak
			p.LastCompletedDate = last
			return tx.SaveProgress(context.Background(), *p)
		}))
	}
	set(a.ID, 4, today.AddDays(-1))
	set(b.ID, 4, today)

	users, err := s.UsersWithStreakAtRisk(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a.ID, users[0].ID)
}
