package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/application/query"
	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	tg "github.com/taskquest/taskquest-bot/internal/infrastructure/external/telegram"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/persistence/memory"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/handler"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/middleware"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

type sent struct {
	chatID   int64
	text     string
	keyboard *tg.InlineKeyboardMarkup
}

type answer struct {
	id    string
	text  string
	alert bool
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []sent
	edits   []sent
	answers []answer
	editErr error
}

func (f *fakeAPI) GetMe(context.Context) (*tg.User, error) {
	return &tg.User{ID: 1, Username: "TaskQuestBot", IsBot: true}, nil
}

func (f *fakeAPI) SendHTML(_ context.Context, chatID int64, html string, kb *tg.InlineKeyboardMarkup) (*tg.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{chatID, html, kb})
	return &tg.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, chatID, _ int64, html string, kb *tg.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, sent{chatID, html, kb})
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{id, text, alert})
	return nil
}

func (f *fakeAPI) StartPolling(ctx context.Context, _ tg.UpdateHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T, mutate func(*BotConfig)) (*Bot, *fakeAPI) {
	t.Helper()
	store := memory.New()
	clock := timeutil.Fixed(testNow)
	log := logger.Nop()
	engine := gamification.NewEngine(store, gamification.Config{Clock: clock, Logger: log})

	h := handler.New(handler.Deps{
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
	})

	cfg := DefaultBotConfig()
	cfg.Logger = log
	cfg.Recovery.EnableStackTrace = false
	if mutate != nil {
		mutate(&cfg)
	}
	api := &fakeAPI{}
	return NewBot(cfg, api, h), api
}

func commandUpdate(from int64, text string) *tg.Update {
	name := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		name = text[:i]
	}
	return &tg.Update{Message: &tg.Message{
		MessageID: 100,
		From:      &tg.User{ID: from, FirstName: "Аня"},
		Chat:      &tg.Chat{ID: from, Type: "private"},
		Text:      text,
		Entities:  []tg.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func callbackUpdate(from int64, data string) *tg.Update {
	return &tg.Update{CallbackQuery: &tg.CallbackQuery{
		ID:      "cq-" + data,
		From:    &tg.User{ID: from, FirstName: "Аня"},
		Message: &tg.Message{MessageID: 7, Chat: &tg.Chat{ID: from, Type: "private"}},
		Data:    data,
	}}
}

func TestBot_StartRegistersAndGreets(t *testing.T) {
	bot, api := newTestBot(t, nil)
	bot.HandleUpdate(context.Background(), commandUpdate(500, "/start"))
	bot.HandleUpdate(context.Background(), commandUpdate(500, "/start"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, int64(500), api.sent[0].chatID)
	assert.Contains(t, api.sent[0].text, "Привет")
	assert.NotNil(t, api.sent[0].keyboard)
	assert.Contains(t, api.sent[1].text, "С возвращением")
}

func TestBot_IgnoresGroupChatsAndPlainText(t *testing.T) {
	bot, api := newTestBot(t, nil)

	group := commandUpdate(500, "/start")
	group.Message.Chat.Type = "group"
	bot.HandleUpdate(context.Background(), group)

	plain := commandUpdate(500, "привет")
	plain.Message.Entities = nil
	bot.HandleUpdate(context.Background(), plain)

	assert.Empty(t, api.sent)
}

func TestBot_CreateAndCompleteTask(t *testing.T) {
	bot, api := newTestBot(t, nil)
	ctx := context.Background()

	bot.HandleUpdate(ctx, commandUpdate(500, "/new Купить хлеб | 2"))
	require.Len(t, api.sent, 1)
	require.NotNil(t, api.sent[0].keyboard)
	done := api.sent[0].keyboard.InlineKeyboard[0][0].CallbackData
	require.True(t, strings.HasPrefix(done, notification.PrefixDone))

	bot.HandleUpdate(ctx, callbackUpdate(500, done))
	require.Len(t, api.answers, 1)
	assert.Equal(t, "cq-"+done, api.answers[0].id)
	require.Len(t, api.edits, 1)
	assert.Contains(t, api.edits[0].text, "XP")

	// Повторное выполнение: только уведомление, сообщение не меняется.
	bot.HandleUpdate(ctx, callbackUpdate(500, done))
	require.Len(t, api.answers, 2)
	assert.NotEmpty(t, api.answers[1].text)
	assert.Len(t, api.edits, 1)

	snap := bot.Metrics()
	assert.Equal(t, int64(1), snap.Routes["/new"].Requests)
	assert.Equal(t, int64(2), snap.Routes["callback:"+notification.PrefixDone].Requests)
}

func plainUpdate(from int64, text string) *tg.Update {
	u := commandUpdate(from, text)
	u.Message.Entities = nil
	return u
}

func TestBot_EditTitleByMessage(t *testing.T) {
	bot, api := newTestBot(t, nil)
	ctx := context.Background()

	bot.HandleUpdate(ctx, commandUpdate(500, "/new Купить хлеб | 2"))
	require.Len(t, api.sent, 1)
	_, id, ok := notification.ParseCallback(api.sent[0].keyboard.InlineKeyboard[0][0].CallbackData)
	require.True(t, ok)

	bot.HandleUpdate(ctx, callbackUpdate(500, notification.WithID(notification.PrefixEditTitle, id)))
	require.Len(t, api.edits, 1)
	assert.Equal(t, presenter.EditPrompt(presenter.EditTitle), api.edits[0].text)

	bot.HandleUpdate(ctx, plainUpdate(500, "Купить молоко"))
	require.Len(t, api.sent, 2)
	assert.Contains(t, api.sent[1].text, "✅ Название обновлено!")
	assert.Contains(t, api.sent[1].text, "Купить молоко")
	assert.Equal(t, int64(1), bot.Metrics().Routes["text:edit"].Requests)

	// Правка завершена: следующий текст снова игнорируется.
	bot.HandleUpdate(ctx, plainUpdate(500, "ещё текст"))
	assert.Len(t, api.sent, 2)
}

func TestBot_CommandAbandonsEdit(t *testing.T) {
	bot, api := newTestBot(t, nil)
	ctx := context.Background()

	bot.HandleUpdate(ctx, commandUpdate(500, "/new Отчёт"))
	_, id, ok := notification.ParseCallback(api.sent[0].keyboard.InlineKeyboard[0][0].CallbackData)
	require.True(t, ok)

	bot.HandleUpdate(ctx, callbackUpdate(500, notification.WithID(notification.PrefixEditDue, id)))
	bot.HandleUpdate(ctx, commandUpdate(500, "/help"))
	bot.HandleUpdate(ctx, plainUpdate(500, "завтра"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, presenter.Help(), api.sent[1].text)
}

func TestBot_DeleteAsksForConfirmation(t *testing.T) {
	bot, api := newTestBot(t, nil)
	ctx := context.Background()

	bot.HandleUpdate(ctx, commandUpdate(500, "/new Лишнее"))
	_, id, ok := notification.ParseCallback(api.sent[0].keyboard.InlineKeyboard[0][0].CallbackData)
	require.True(t, ok)

	bot.HandleUpdate(ctx, callbackUpdate(500, notification.WithID(notification.PrefixDelete, id)))
	require.Len(t, api.edits, 1)
	assert.Equal(t, presenter.MsgConfirmDelete, api.edits[0].text)

	bot.HandleUpdate(ctx, callbackUpdate(500, notification.WithID(notification.PrefixConfirmDelete, id)))
	require.Len(t, api.answers, 2)
	assert.Equal(t, "🗑 Задача удалена", api.answers[1].text)

	bot.HandleUpdate(ctx, callbackUpdate(500, notification.WithID(notification.PrefixTask, id)))
	require.Len(t, api.answers, 3)
	assert.Equal(t, presenter.MsgTaskNotFound, api.answers[2].text)
}

func TestBot_EditFailureFallsBackToSend(t *testing.T) {
	bot, api := newTestBot(t, nil)
	api.editErr = assert.AnError

	bot.HandleUpdate(context.Background(), callbackUpdate(500, notification.CallbackBackToList))

	require.Len(t, api.answers, 1)
	assert.Empty(t, api.edits)
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(500), api.sent[0].chatID)
}

func TestBot_UnknownCallbackAnswersToast(t *testing.T) {
	bot, api := newTestBot(t, nil)
	bot.HandleUpdate(context.Background(), callbackUpdate(500, "what_is_this"))

	require.Len(t, api.answers, 1)
	assert.Equal(t, "Неизвестное действие", api.answers[0].text)
	assert.Empty(t, api.edits)
	assert.Empty(t, api.sent)
}

func TestBot_UnknownCommand(t *testing.T) {
	bot, api := newTestBot(t, nil)
	bot.HandleUpdate(context.Background(), commandUpdate(500, "/dance"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, presenter.MsgUnknownCommand, api.sent[0].text)
	assert.Equal(t, int64(1), bot.Metrics().Routes["/unknown"].Requests)
}

func TestBot_RateLimited(t *testing.T) {
	bot, api := newTestBot(t, func(c *BotConfig) {
		c.RateLimit.BurstSize = 1
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Clock = timeutil.Fixed(testNow)
	})

	bot.HandleUpdate(context.Background(), commandUpdate(500, "/help"))
	bot.HandleUpdate(context.Background(), commandUpdate(500, "/help"))

	require.Len(t, api.sent, 2)
	assert.Contains(t, api.sent[1].text, "Слишком много запросов")
	assert.Equal(t, int64(1), bot.Metrics().Requests)
}

func TestBot_PanicIsRecovered(t *testing.T) {
	bot, api := newTestBot(t, nil)
	bot.router.RegisterCommand("boom", func(context.Context, handler.Request) (*handler.Response, error) {
		panic("kaboom")
	})

	bot.HandleUpdate(context.Background(), commandUpdate(500, "/boom"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, middleware.UserErrorMessage, api.sent[0].text)
	assert.Equal(t, int64(1), bot.Metrics().Errors)
}

func TestBot_ToggleRemindersRefreshesUser(t *testing.T) {
	bot, api := newTestBot(t, nil)
	ctx := context.Background()

	bot.HandleUpdate(ctx, callbackUpdate(500, notification.CallbackToggleReminders))
	bot.HandleUpdate(ctx, callbackUpdate(500, notification.CallbackToggleReminders))

	require.Len(t, api.answers, 2)
	assert.Equal(t, "🔕 Напоминания выключены", api.answers[0].text)
	assert.Equal(t, "🔔 Напоминания включены", api.answers[1].text)
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	bot, _ := newTestBot(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bot.Run(ctx), context.Canceled)
}

func TestRouter_Routes(t *testing.T) {
	bot, _ := newTestBot(t, nil)
	r := bot.router

	assert.Equal(t, []string{"achievements", "help", "new", "profile", "settings", "start", "tasks", "top"}, r.Commands())

	_, route := r.Command("tasks")
	assert.Equal(t, "/tasks", route)
	_, route = r.Command("nope")
	assert.Equal(t, "/unknown", route)

	_, route = r.Callback("done_42")
	assert.Equal(t, "callback:done_", route)
	_, route = r.Callback("page_2")
	assert.Equal(t, "callback:page_", route)
	_, route = r.Callback(notification.CallbackShowLeaderboard)
	assert.Equal(t, "callback:show_leaderboard", route)
	_, route = r.Callback("done_abc")
	assert.Equal(t, "callback:unknown", route)
	_, route = r.Callback("edit_title_5")
	assert.Equal(t, "callback:edit_title_", route)
	_, route = r.Callback("edit_5")
	assert.Equal(t, "callback:edit_", route)
	_, route = r.Callback("confirm_delete_5")
	assert.Equal(t, "callback:confirm_delete_", route)
	_, route = r.Callback(notification.CallbackDetailedStats)
	assert.Equal(t, "callback:detailed_stats", route)
	_, route = r.Text()
	assert.Equal(t, "text:edit", route)
}
