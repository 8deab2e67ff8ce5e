package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	tg "github.com/taskquest/taskquest-bot/internal/infrastructure/external/telegram"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/handler"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/middleware"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// MaxConcurrentUpdates bounds how many updates are handled at once.
	MaxConcurrentUpdates int

	// HandlerTimeout bounds a single update.
	HandlerTimeout time.Duration

	// GracefulShutdownTimeout is how long Stop waits for in-flight updates.
	GracefulShutdownTimeout time.Duration

	RateLimit middleware.RateLimitConfig
	Auth      middleware.AuthConfig
	Recovery  middleware.RecoveryConfig

	Debug  bool
	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		MaxConcurrentUpdates:    16,
		HandlerTimeout:          30 * time.Second,
		GracefulShutdownTimeout: 10 * time.Second,
		RateLimit:               middleware.DefaultRateLimitConfig(),
		Auth:                    middleware.DefaultAuthConfig(),
		Recovery:                middleware.DefaultRecoveryConfig(),
	}
}

// API is the part of the Bot API client the bot uses.
type API interface {
	GetMe(ctx context.Context) (*tg.User, error)
	SendHTML(ctx context.Context, chatID int64, html string, keyboard *tg.InlineKeyboardMarkup) (*tg.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, html string, keyboard *tg.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error
	StartPolling(ctx context.Context, handler tg.UpdateHandler) error
}

// PendingInput tracks users whose next text message answers a prompt.
type PendingInput interface {
	AwaitingInput(telegramID int64) bool
	DiscardInput(telegramID int64)
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Telegram bot controller.
type Bot struct {
	config BotConfig
	api    API
	router *Router
	input  PendingInput
	logger *slog.Logger

	auth     *middleware.Auth
	limiter  *middleware.RateLimiter
	recovery *middleware.Recovery
	metrics  *middleware.Metrics

	wg        sync.WaitGroup
	updateSem chan struct{}
}

// NewBot creates a bot routing updates to h.
func NewBot(config BotConfig, api API, h *handler.Handlers) *Bot {
	def := DefaultBotConfig()
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = def.MaxConcurrentUpdates
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = def.HandlerTimeout
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = def.GracefulShutdownTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	log := config.Logger.With(logger.Component("bot"))
	config.Recovery.Logger = config.Logger

	router := NewRouter(RouterConfig{Logger: log, Debug: config.Debug})
	router.RegisterHandlers(h)

	return &Bot{
		config:    config,
		api:       api,
		router:    router,
		input:     h,
		logger:    log,
		auth:      middleware.NewAuth(h, config.Auth),
		limiter:   middleware.NewRateLimiter(config.RateLimit),
		recovery:  middleware.NewRecovery(config.Recovery),
		metrics:   middleware.NewMetrics(),
		updateSem: make(chan struct{}, config.MaxConcurrentUpdates),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Run verifies the token and long-polls until ctx is cancelled, then waits
// for in-flight updates up to GracefulShutdownTimeout.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	b.logger.Info("bot verified", slog.Int64("id", me.ID), slog.String("username", me.Username))

	go b.limiter.Run(ctx)

	err = b.api.StartPolling(ctx, func(ctx context.Context, update *tg.Update) error {
		select {
		case b.updateSem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		b.wg.Add(1)
		go func() {
			defer func() { <-b.updateSem; b.wg.Done() }()
			b.HandleUpdate(context.WithoutCancel(ctx), update)
		}()
		return nil
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	}
	return err
}

// Metrics returns the per-route counters.
func (b *Bot) Metrics() middleware.MetricsSnapshot {
	return b.metrics.Snapshot()
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update *tg.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func registration(from *tg.User, chatID int64) command.RegisterUserCommand {
	return command.RegisterUserCommand{
		TelegramID: from.ID,
		ChatID:     chatID,
		Username:   from.Username,
		FirstName:  from.FirstName,
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tg.Message) {
	if msg.From == nil || msg.Chat == nil || !tg.IsPrivateChat(msg) {
		return
	}
	name := tg.ExtractCommand(msg)
	if name == "" {
		if msg.Text != "" && b.input.AwaitingInput(msg.From.ID) {
			b.handleText(ctx, msg)
		}
		return
	}
	log := b.logger.With(slog.Int64("telegram_id", msg.From.ID), slog.String("command", name))

	if res := b.limiter.Check(ctx, msg.From.ID); !res.Allowed {
		b.send(ctx, log, msg.Chat.ID, &handler.Response{Text: res.Message()})
		return
	}

	// Any command abandons a pending edit.
	b.input.DiscardInput(msg.From.ID)

	fn, route := b.router.Command(name)
	resp := b.dispatch(ctx, log, route, msg.From, msg.Chat.ID, tg.ExtractCommandArgs(msg), fn)
	b.send(ctx, log, msg.Chat.ID, resp)
}

// handleText passes a plain message to the pending edit.
func (b *Bot) handleText(ctx context.Context, msg *tg.Message) {
	log := b.logger.With(slog.Int64("telegram_id", msg.From.ID))

	if res := b.limiter.Check(ctx, msg.From.ID); !res.Allowed {
		b.send(ctx, log, msg.Chat.ID, &handler.Response{Text: res.Message()})
		return
	}

	fn, route := b.router.Text()
	resp := b.dispatch(ctx, log, route, msg.From, msg.Chat.ID, msg.Text, fn)
	b.send(ctx, log, msg.Chat.ID, resp)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tg.CallbackQuery) {
	if cq.From == nil {
		return
	}
	log := b.logger.With(slog.Int64("telegram_id", cq.From.ID), slog.String("callback", cq.Data))

	if res := b.limiter.Check(ctx, cq.From.ID); !res.Allowed {
		b.answer(ctx, log, cq.ID, &handler.Response{Toast: res.Message(), Alert: true})
		return
	}

	chatID := cq.From.ID
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}

	fn, route := b.router.Callback(cq.Data)
	resp := b.dispatch(ctx, log, route, cq.From, chatID, cq.Data, fn)
	b.answer(ctx, log, cq.ID, resp)

	if resp.Text == "" {
		return
	}
	// A failed action keeps the message as it is and only shows the toast.
	if resp.IsError && resp.Toast != "" {
		return
	}
	if cq.Message != nil {
		err := b.api.EditMessageText(ctx, chatID, cq.Message.MessageID, resp.Text, tg.Keyboard(resp.Keyboard.Buttons()))
		if err == nil {
			return
		}
		log.Warn("edit failed, sending a new message", logger.Err(err))
	}
	b.send(ctx, log, chatID, resp)
}

var toggleRemindersRoute = "callback:" + notification.CallbackToggleReminders

// dispatch resolves the user and runs fn under panic recovery.
func (b *Bot) dispatch(ctx context.Context, log *slog.Logger, route string, from *tg.User, chatID int64, args string, fn HandlerFunc) *handler.Response {
	started := time.Now()

	var resp *handler.Response
	err := b.recovery.Run(from.ID, route, func() error {
		u, created, err := b.auth.Authenticate(ctx, registration(from, chatID))
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		ctx = middleware.WithUser(logger.WithContext(ctx, log), u)

		resp, err = fn(ctx, handler.Request{User: u, Created: created, Args: args})
		return err
	})
	if route == toggleRemindersRoute {
		b.auth.Invalidate(from.ID)
	}
	b.metrics.Observe(route, time.Since(started), err)

	switch {
	case errors.Is(err, middleware.ErrHandlerPanicked):
		return &handler.Response{Text: middleware.UserErrorMessage, Toast: presenter.MsgGenericError, IsError: true}
	case err != nil:
		log.Error("handler failed", slog.String("route", route), logger.Err(err), logger.Latency(time.Since(started)))
	}
	if resp == nil {
		resp = &handler.Response{Text: presenter.MsgGenericError, Toast: presenter.MsgGenericError, IsError: true}
	}
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) send(ctx context.Context, log *slog.Logger, chatID int64, resp *handler.Response) {
	if resp == nil || resp.Text == "" {
		return
	}
	if _, err := b.api.SendHTML(ctx, chatID, resp.Text, tg.Keyboard(resp.Keyboard.Buttons())); err != nil {
		log.Error("failed to send response", logger.ChatID(chatID), logger.Err(err))
	}
}

func (b *Bot) answer(ctx context.Context, log *slog.Logger, queryID string, resp *handler.Response) {
	if err := b.api.AnswerCallbackQuery(ctx, queryID, resp.Toast, resp.Alert); err != nil {
		log.Warn("failed to answer callback", logger.Err(err))
	}
}
