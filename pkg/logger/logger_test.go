package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: slog.LevelInfo, Format: FormatJSON})

	l.Info("task completed", UserID(7), TaskID(42), Err(errors.New("boom")))
	l.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "task completed", entry["msg"])
	assert.EqualValues(t, 7, entry["user_id"])
	assert.EqualValues(t, 42, entry["task_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: slog.LevelDebug, Format: FormatText, NoColor: true})

	l.Debug("scheduler tick", Job("daily_summary"))

	assert.Contains(t, buf.String(), "scheduler tick")
	assert.Contains(t, buf.String(), "job=daily_summary")
}

func TestContextRoundTrip(t *testing.T) {
	l := Nop()
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
