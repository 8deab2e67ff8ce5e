package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

type env struct {
	store    *memory.Store
	engine   *gamification.Engine
	register *RegisterUserHandler
	create   *CreateTaskHandler
	complete *CompleteTaskHandler
	manage   *ManageTaskHandler
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{store: memory.New(), now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }
	log := logger.Nop()
	e.engine = gamification.NewEngine(e.store, gamification.Config{Clock: clock, Logger: log})
	e.register = NewRegisterUserHandler(e.store, clock, log)
	e.create = NewCreateTaskHandler(e.store, e.engine, clock, log)
	e.complete = NewCompleteTaskHandler(e.store, e.engine, time.UTC, clock, log)
	e.manage = NewManageTaskHandler(e.store, e.store, clock)
	return e
}

func (e *env) user(t *testing.T) shared.UserID {
	t.Helper()
	res, err := e.register.Handle(context.Background(), RegisterUserCommand{TelegramID: 555, FirstName: "Аня"})
	require.NoError(t, err)
	return res.User.ID
}

func TestCreateTask_UnlocksFirstTask(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)

	res, err := e.create.Handle(context.Background(), CreateTaskCommand{UserID: uid, Title: " Купить хлеб ", Priority: 3})
	require.NoError(t, err)
	assert.Equal(t, "Купить хлеб", res.Task.Title)
	assert.Equal(t, 1, res.TotalCreated)
	require.Len(t, res.Achievements, 1)
	assert.Equal(t, achievement.FirstTask, res.Achievements[0].ID)
	assert.Equal(t, 10, res.Rewards.NewXP)
}

func TestCreateTask_Validation(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)

	_, err := e.create.Handle(context.Background(), CreateTaskCommand{UserID: uid, Title: "   ", Priority: 3})
	assert.True(t, shared.IsValidation(err))

	_, err = e.create.Handle(context.Background(), CreateTaskCommand{UserID: uid, Title: "x", Priority: 0})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCompleteTask_MaxTier(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	due := e.now.Add(2 * time.Hour)
	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "Релиз", Priority: 10, DueDate: &due})
	require.NoError(t, err)

	e.now = e.now.Add(time.Hour)
	res, err := e.complete.Handle(ctx, CompleteTaskCommand{UserID: uid, TaskID: created.Task.ID})
	require.NoError(t, err)

	assert.True(t, res.OnTime)
	assert.True(t, res.SameDay)
	assert.Equal(t, 105, res.TaskXP)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1, res.Streak.NewStreak)
	assert.Equal(t, 1, res.TotalCompleted)

	var ids []achievement.ID
	for _, d := range res.Achievements {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []achievement.ID{achievement.HighPriority, achievement.Perfectionist, achievement.NoProcrastination}, ids)
	assert.Equal(t, 65, res.BonusXP)
	// 10 (first task) + 105 + 65
	assert.Equal(t, 180, res.TotalXP)
	assert.Equal(t, 2, res.Level)
}

func TestCompleteTask_LowPriorityOnTime(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "Звонок", Priority: 1})
	require.NoError(t, err)

	e.now = e.now.Add(30 * time.Hour)
	res, err := e.complete.Handle(ctx, CompleteTaskCommand{UserID: uid, TaskID: created.Task.ID})
	require.NoError(t, err)

	assert.True(t, res.OnTime)
	assert.False(t, res.SameDay)
	assert.Equal(t, 22, res.TaskXP)
}

func TestCompleteTask_OnlyOnce(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "Один раз", Priority: 5})
	require.NoError(t, err)

	first, err := e.complete.Handle(ctx, CompleteTaskCommand{UserID: uid, TaskID: created.Task.ID})
	require.NoError(t, err)

	_, err = e.complete.Handle(ctx, CompleteTaskCommand{UserID: uid, TaskID: created.Task.ID})
	assert.ErrorIs(t, err, shared.ErrTaskAlreadyCompleted)

	stats, err := e.engine.GetUserStats(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, first.TotalXP, stats.XP)
	assert.Equal(t, 1, stats.TotalCompleted)
}

func TestManageTask_UpdateDueResetsReminders(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	due := e.now.Add(time.Hour)
	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "Отчёт", Priority: 5, DueDate: &due})
	require.NoError(t, err)
	require.NoError(t, e.store.MarkReminderSent(ctx, created.Task.ID))

	later := due.Add(24 * time.Hour)
	title := "Отчёт v2"
	updated, err := e.manage.Update(ctx, UpdateTaskCommand{UserID: uid, TaskID: created.Task.ID, Title: &title, DueDate: &later, SetDueDate: true})
	require.NoError(t, err)
	assert.Equal(t, "Отчёт v2", updated.Title)

	stored, err := e.store.Get(ctx, uid, created.Task.ID)
	require.NoError(t, err)
	assert.False(t, stored.ReminderSent)
	assert.True(t, stored.DueDate.Equal(later))

	bad := 11
	_, err = e.manage.Update(ctx, UpdateTaskCommand{UserID: uid, TaskID: created.Task.ID, Priority: &bad})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestManageTask_StatusChanges(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "A", Priority: 5})
	require.NoError(t, err)

	started, err := e.manage.Start(ctx, uid, created.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, started.Status)

	_, err = e.manage.Cancel(ctx, uid, created.Task.ID)
	require.NoError(t, err)

	_, err = e.complete.Handle(ctx, CompleteTaskCommand{UserID: uid, TaskID: created.Task.ID})
	assert.ErrorIs(t, err, shared.ErrTaskClosed)

	require.NoError(t, e.manage.Delete(ctx, uid, created.Task.ID))
	assert.ErrorIs(t, e.manage.Delete(ctx, uid, created.Task.ID), shared.ErrTaskNotFound)
}

func TestUpdateReminderSettings_Toggle(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	h := NewUpdateReminderSettingsHandler(e.store)

	enabled, err := h.Handle(context.Background(), UpdateReminderSettingsCommand{UserID: uid})
	require.NoError(t, err)
	assert.False(t, enabled)

	on := true
	enabled, err = h.Handle(context.Background(), UpdateReminderSettingsCommand{UserID: uid, Enabled: &on})
	require.NoError(t, err)
	assert.True(t, enabled)
}
