package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY
// Converts handler panics into errors so the polling loop keeps running.
// ══════════════════════════════════════════════════════════════════════════════

// ErrHandlerPanicked wraps a recovered panic.
var ErrHandlerPanicked = errors.New("handler panicked")

// UserErrorMessage is sent to the user after a panic.
const UserErrorMessage = "😔 Что-то пошло не так.\n\nПопробуй ещё раз через несколько минут."

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace logs the stack of every recovered panic.
	EnableStackTrace bool

	// MaxStackTracesPerMinute limits stack logging during a panic storm.
	MaxStackTracesPerMinute int

	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{EnableStackTrace: true, MaxStackTracesPerMinute: 20}
}

// Recovery recovers from panics in update handlers.
type Recovery struct {
	config RecoveryConfig
	logger *slog.Logger

	mu     sync.Mutex
	window time.Time
	count  int
	total  int64
}

// NewRecovery creates a new recovery middleware.
func NewRecovery(config RecoveryConfig) *Recovery {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Recovery{config: config, logger: config.Logger.With(logger.Component("recovery"))}
}

// Run calls fn and turns a panic into an error wrapping ErrHandlerPanicked.
func (r *Recovery) Run(telegramID int64, route string, fn func() error) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err = fmt.Errorf("%w: %s: %v", ErrHandlerPanicked, route, rec)

		attrs := []any{slog.Int64("telegram_id", telegramID), slog.String("route", route), slog.Any("panic", rec)}
		if r.record() && r.config.EnableStackTrace {
			attrs = append(attrs, slog.String("stack", string(debug.Stack())))
		}
		r.logger.Error("panic recovered", attrs...)
	}()
	return fn()
}

// record counts the panic and reports whether its stack may be logged.
func (r *Recovery) record() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	now := time.Now()
	if now.Sub(r.window) > time.Minute {
		r.window = now
		r.count = 0
	}
	r.count++
	return r.config.MaxStackTracesPerMinute <= 0 || r.count <= r.config.MaxStackTracesPerMinute
}

// Panics returns how many panics were recovered.
func (r *Recovery) Panics() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
