package handler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newHandlers(t *testing.T) *Handlers {
	t.Helper()
	h, _ := newHandlersWithStore(t, timeutil.Fixed(now))
	return h
}

func newHandlersWithStore(t *testing.T, clock timeutil.Clock) (*Handlers, *memory.Store) {
	t.Helper()
	store := memory.New()
	log := logger.Nop()
	engine := gamification.NewEngine(store, gamification.Config{Clock: clock, Logger: log})

	return New(Deps{
		Register:         command.NewRegisterUserHandler(store, clock, log),
		CreateTask:       command.NewCreateTaskHandler(store, engine, clock, log),
		CompleteTask:     command.NewCompleteTaskHandler(store, engine, time.UTC, clock, log),
		ManageTask:       command.NewManageTaskHandler(store, store, clock),
		ReminderSettings: command.NewUpdateReminderSettingsHandler(store),
		Tasks:            query.NewTasks(store),
		Game:             engine,
		Users:            store,
		Location:         time.UTC,
		Clock:            clock,
		Logger:           log,
	}), store
}

func register(t *testing.T, h *Handlers, tgID int64, name string) Request {
	t.Helper()
	u, created, err := h.ResolveUser(context.Background(), command.RegisterUserCommand{TelegramID: tgID, ChatID: tgID, FirstName: name})
	require.NoError(t, err)
	return Request{User: u, Created: created}
}

func createTask(t *testing.T, h *Handlers, req Request, args string) shared.TaskID {
	t.Helper()
	req.Args = args
	resp, err := h.NewTask(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.IsError, resp.Text)

	action, id, ok := notification.ParseCallback(resp.Keyboard.Rows[0][0].CallbackData)
	require.True(t, ok)
	require.Equal(t, notification.PrefixDone, action)
	return shared.TaskID(id)
}

func TestParseNewTask(t *testing.T) {
	in, err := ParseNewTask(" Купить хлеб ", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, NewTaskInput{Title: "Купить хлеб", Priority: defaultPriority}, in)

	in, err = ParseNewTask("Отчёт | 8 | 12.03.2024 15:30", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 8, in.Priority)
	require.NotNil(t, in.DueDate)
	assert.Equal(t, time.Date(2024, 3, 12, 15, 30, 0, 0, time.UTC), *in.DueDate)

	in, err = ParseNewTask("Звонок | | завтра", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, defaultPriority, in.Priority)
	assert.Equal(t, 11, in.DueDate.Day())

	_, err = ParseNewTask(" | 3", now, time.UTC)
	assert.True(t, shared.IsValidation(err))

	_, err = ParseNewTask("x | высокий", now, time.UTC)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseNewTask("x | 3 | 31.02.2024", now, time.UTC)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseNewTask("a | 1 | завтра | ещё", now, time.UTC)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStart_GreetsNewAndReturningUsers(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	req := register(t, h, 100, "Аня")
	assert.True(t, req.Created)
	resp, err := h.Start(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Привет, <b>Аня</b>")

	again := register(t, h, 100, "Аня")
	assert.False(t, again.Created)
	resp, err = h.Start(ctx, again)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "С возвращением")
}

func TestNewTask_PromptAndValidation(t *testing.T) {
	h := newHandlers(t)
	req := register(t, h, 100, "Аня")

	resp, err := h.NewTask(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgNewTaskPrompt, resp.Text)

	req.Args = "Отчёт | 11"
	resp, err = h.NewTask(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Text, "priority must be at most 10")
}

func TestCompleteFlow(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	req := register(t, h, 100, "Аня")

	id := createTask(t, h, req, "Релиз | 10 | 10.03.2024 18:00")

	resp, err := h.CompleteTask(ctx, req, id)
	require.NoError(t, err)
	assert.False(t, resp.IsError)
	assert.Contains(t, resp.Text, "Задача выполнена")
	assert.Contains(t, resp.Text, "вовремя, в тот же день")
	assert.True(t, strings.HasPrefix(resp.Toast, "+"))

	resp, err = h.CompleteTask(ctx, req, id)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Equal(t, presenter.MsgTaskDone, resp.Toast)

	resp, err = h.Profile(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "✅ Выполнена: 1")
}

func TestTaskTransitions(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	req := register(t, h, 100, "Аня")
	id := createTask(t, h, req, "Спорт | 3")

	resp, err := h.StartTask(ctx, req, id)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "🔄 В работе")

	resp, err = h.CancelTask(ctx, req, id)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "❌ Отменена")

	resp, err = h.StartTask(ctx, req, id)
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgTaskClosed, resp.Toast)

	resp, err = h.DeleteTask(ctx, req, id)
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgConfirmDelete, resp.Text)

	resp, err = h.TaskDetail(ctx, req, id)
	require.NoError(t, err)
	require.False(t, resp.IsError)

	resp, err = h.ConfirmDeleteTask(ctx, req, id)
	require.NoError(t, err)
	assert.Equal(t, "🗑 Задача удалена", resp.Toast)
	assert.Contains(t, resp.Text, "нет задач")

	resp, err = h.TaskDetail(ctx, req, id)
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgTaskNotFound, resp.Text)
}

func TestTasksAreScopedToOwner(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	owner := register(t, h, 100, "Аня")
	other := register(t, h, 200, "Боб")
	id := createTask(t, h, owner, "Личное")

	resp, err := h.CompleteTask(ctx, other, id)
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgTaskNotFound, resp.Toast)
}

func TestTaskList_Pages(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	req := register(t, h, 100, "Аня")
	for i := 0; i < 7; i++ {
		createTask(t, h, req, "Задача")
	}

	resp, err := h.TaskList(ctx, req, 1)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Страница 2 из 2")
	assert.Len(t, resp.Keyboard.Rows, 4) // 2 tasks, navigation, actions
}

func TestToggleReminders(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	req := register(t, h, 100, "Аня")

	resp, err := h.ToggleReminders(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "🔕 Напоминания выключены", resp.Toast)

	resp, err = h.Settings(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "выключены")
}

func TestLeaderboardAndAchievements(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	anya := register(t, h, 100, "Аня")
	register(t, h, 200, "Боб")
	createTask(t, h, anya, "Первая")

	resp, err := h.Leaderboard(ctx, anya)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "🥇")
	assert.Contains(t, resp.Text, "<b>Аня</b>")
	assert.Contains(t, resp.Text, "← Вы")

	resp, err = h.Achievements(ctx, anya)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "<b>Первый шаг</b>")
}
