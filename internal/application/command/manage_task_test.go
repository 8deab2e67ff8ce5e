package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/task"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
)

// racingTasks marks the reminder as sent right after the handler reads the task,
// the way the deadline job does when it runs concurrently with an edit.
type racingTasks struct {
	task.Repository
	store *memory.Store
}

func (r racingTasks) Get(ctx context.Context, userID shared.UserID, id shared.TaskID) (*task.Task, error) {
	t, err := r.Repository.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := r.store.MarkReminderSent(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func TestManageTask_TitleEditKeepsSentReminder(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	due := e.now.Add(3 * time.Hour)
	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "Отчёт", Priority: 5, DueDate: &due})
	require.NoError(t, err)

	h := NewManageTaskHandler(racingTasks{Repository: e.store, store: e.store}, e.store, func() time.Time { return e.now })
	title := "Отчёт v2"
	_, err = h.Update(ctx, UpdateTaskCommand{UserID: uid, TaskID: created.Task.ID, Title: &title})
	require.NoError(t, err)

	stored, err := e.store.Get(ctx, uid, created.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Отчёт v2", stored.Title)
	assert.True(t, stored.ReminderSent)

	upcoming, err := e.store.TasksDueBetween(ctx, e.now, e.now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestManageTask_SameDueDoesNotReset(t *testing.T) {
	e := newEnv(t)
	uid := e.user(t)
	ctx := context.Background()

	due := e.now.Add(3 * time.Hour)
	created, err := e.create.Handle(ctx, CreateTaskCommand{UserID: uid, Title: "Отчёт", Priority: 5, DueDate: &due})
	require.NoError(t, err)
	require.NoError(t, e.store.MarkReminderSent(ctx, created.Task.ID))

	same := due
	_, err = e.manage.Update(ctx, UpdateTaskCommand{UserID: uid, TaskID: created.Task.ID, DueDate: &same, SetDueDate: true})
	require.NoError(t, err)

	stored, err := e.store.Get(ctx, uid, created.Task.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)
}
