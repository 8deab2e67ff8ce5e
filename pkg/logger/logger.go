// Package logger builds the process-wide *slog.Logger and carries it through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the handler used for output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures New.
type Options struct {
	Output io.Writer
	Level  slog.Level
	Format Format

	// NoColor disables ANSI colors for the text handler (useful when output is not a TTY).
	NoColor bool

	// AddSource includes file:line of the call site.
	AddSource bool
}

// DefaultOptions returns info-level JSON logging to stdout.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
		Format: FormatJSON,
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" into a slog level.
// Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. JSON output goes to log aggregators in production,
// the tint handler gives readable colored lines during development.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatText:
		handler = tint.NewHandler(opts.Output, &tint.Options{
			Level:      opts.Level,
			AddSource:  opts.AddSource,
			TimeFormat: time.TimeOnly,
			NoColor:    opts.NoColor,
		})
	default:
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		})
	}

	return slog.New(handler)
}

// Setup creates a logger and installs it as slog's default.
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Attribute helpers keep key names consistent across packages.
func UserID(id int64) slog.Attr        { return slog.Int64("user_id", id) }
func TaskID(id int64) slog.Attr        { return slog.Int64("task_id", id) }
func ChatID(id int64) slog.Attr        { return slog.Int64("chat_id", id) }
func Job(name string) slog.Attr        { return slog.String("job", name) }
func Component(name string) slog.Attr  { return slog.String("component", name) }
func XP(amount int) slog.Attr          { return slog.Int("xp", amount) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }

// Err attaches an error under the "error" key.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
