// Package telegram implements the Telegram bot interface: routing of
// commands and callbacks, middleware and response delivery.
package telegram

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/taskquest/taskquest-bot/internal/domain/notification"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/handler"
	"github.com/taskquest/taskquest-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// HandlerFunc handles a routed command or callback.
type HandlerFunc func(ctx context.Context, req handler.Request) (*handler.Response, error)

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Logger *slog.Logger

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// Router routes commands by name and callbacks by action.
type Router struct {
	config RouterConfig
	logger *slog.Logger

	mu        sync.RWMutex
	commands  map[string]HandlerFunc
	callbacks map[string]HandlerFunc

	text HandlerFunc

	defaultCommand  HandlerFunc
	defaultCallback HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter(config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Router{
		config:    config,
		logger:    config.Logger,
		commands:  make(map[string]HandlerFunc),
		callbacks: make(map[string]HandlerFunc),
		defaultCommand: func(context.Context, handler.Request) (*handler.Response, error) {
			return &handler.Response{Text: presenter.MsgUnknownCommand}, nil
		},
		defaultCallback: func(context.Context, handler.Request) (*handler.Response, error) {
			return handler.Toast("Неизвестное действие", false), nil
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// REGISTRATION
// ─────────────────────────────────────────────────────────────────────────────

// RegisterCommand registers a handler for a command without the leading "/".
func (r *Router) RegisterCommand(command string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[command] = fn
	if r.config.Debug {
		r.logger.Debug("registered command handler", "command", command)
	}
}

// RegisterCallbackPrefix registers a handler for an id prefix ("done_") or
// for a parameterless action ("back_to_list").
func (r *Router) RegisterCallbackPrefix(prefix string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = fn
	if r.config.Debug {
		r.logger.Debug("registered callback prefix handler", "prefix", prefix)
	}
}

// RegisterText registers the handler for plain text messages.
func (r *Router) RegisterText(fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = fn
}

// withTaskID adapts a task action to a callback handler; the id comes from the data.
func withTaskID(fn func(ctx context.Context, req handler.Request, id shared.TaskID) (*handler.Response, error)) HandlerFunc {
	return func(ctx context.Context, req handler.Request) (*handler.Response, error) {
		_, id, _ := notification.ParseCallback(req.Args)
		return fn(ctx, req, shared.TaskID(id))
	}
}

// RegisterHandlers wires every bot command and callback.
func (r *Router) RegisterHandlers(h *handler.Handlers) {
	r.RegisterCommand("start", h.Start)
	r.RegisterCommand("help", h.Help)
	r.RegisterCommand("new", h.NewTask)
	r.RegisterCommand("tasks", func(ctx context.Context, req handler.Request) (*handler.Response, error) {
		return h.TaskList(ctx, req, 0)
	})
	r.RegisterCommand("profile", h.Profile)
	r.RegisterCommand("top", h.Leaderboard)
	r.RegisterCommand("achievements", h.Achievements)
	r.RegisterCommand("settings", h.Settings)

	r.RegisterCallbackPrefix(notification.PrefixDone, withTaskID(h.CompleteTask))
	r.RegisterCallbackPrefix(notification.PrefixTask, withTaskID(h.TaskDetail))
	r.RegisterCallbackPrefix(notification.PrefixProgress, withTaskID(h.StartTask))
	r.RegisterCallbackPrefix(notification.PrefixCancel, withTaskID(h.CancelTask))
	r.RegisterCallbackPrefix(notification.PrefixDelete, withTaskID(h.DeleteTask))
	r.RegisterCallbackPrefix(notification.PrefixConfirmDelete, withTaskID(h.ConfirmDeleteTask))
	r.RegisterCallbackPrefix(notification.PrefixEdit, withTaskID(h.EditMenu))
	r.RegisterCallbackPrefix(notification.PrefixEditTitle, withTaskID(h.EditTitle))
	r.RegisterCallbackPrefix(notification.PrefixEditDescription, withTaskID(h.EditDescription))
	r.RegisterCallbackPrefix(notification.PrefixEditPriority, withTaskID(h.EditPriority))
	r.RegisterCallbackPrefix(notification.PrefixEditDue, withTaskID(h.EditDue))
	r.RegisterCallbackPrefix(notification.PrefixPage, func(ctx context.Context, req handler.Request) (*handler.Response, error) {
		_, page, _ := notification.ParseCallback(req.Args)
		return h.TaskList(ctx, req, int(page))
	})

	r.RegisterCallbackPrefix(notification.CallbackBackToList, func(ctx context.Context, req handler.Request) (*handler.Response, error) {
		return h.TaskList(ctx, req, 0)
	})
	r.RegisterCallbackPrefix(notification.CallbackBackToProfile, h.Profile)
	r.RegisterCallbackPrefix(notification.CallbackAddTask, h.AddTaskPrompt)
	r.RegisterCallbackPrefix(notification.CallbackShowAchievements, h.Achievements)
	r.RegisterCallbackPrefix(notification.CallbackShowLeaderboard, h.Leaderboard)
	r.RegisterCallbackPrefix(notification.CallbackToggleReminders, h.ToggleReminders)
	r.RegisterCallbackPrefix(notification.CallbackDetailedStats, h.DetailedStats)
	r.RegisterCallbackPrefix(notification.CallbackCancelEdit, h.CancelEdit)

	r.RegisterText(h.EditInput)
}

// ─────────────────────────────────────────────────────────────────────────────
// ROUTING
// ─────────────────────────────────────────────────────────────────────────────

// Command returns the handler for a command and the route name used in metrics.
func (r *Router) Command(command string) (HandlerFunc, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.commands[command]; ok {
		return fn, "/" + command
	}
	return r.defaultCommand, "/unknown"
}

// Callback returns the handler for callback data. Data with a numeric id is
// routed by its prefix ("done_42" → "done_"); other data must match exactly.
func (r *Router) Callback(data string) (HandlerFunc, string) {
	key := data
	if action, _, hasID := notification.ParseCallback(data); hasID {
		key = action
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.callbacks[key]; ok {
		return fn, "callback:" + key
	}
	return r.defaultCallback, "callback:unknown"
}

// Text returns the plain text handler.
func (r *Router) Text() (HandlerFunc, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.text != nil {
		return r.text, "text:edit"
	}
	return func(context.Context, handler.Request) (*handler.Response, error) {
		return &handler.Response{}, nil
	}, "text:unknown"
}

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for c := range r.commands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
