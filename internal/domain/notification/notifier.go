// Package notification содержит модель исходящих сообщений бота и интерфейс их доставки.
package notification

import (
	"context"
	"errors"
	"sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind - тип уведомления, используется в логах и метриках доставки.
type Kind string

const (
	KindUpcomingDeadline Kind = "upcoming_deadline"
	KindOverdue          Kind = "overdue"
	KindDailySummary     Kind = "daily_summary"
	KindStreakReminder   Kind = "streak_reminder"
	KindWeeklyStats      Kind = "weekly_stats"
	KindReply            Kind = "reply"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// Button - кнопка inline-клавиатуры.
type Button struct {
	Text string

	// CallbackData - данные для callback (до 64 байт).
	CallbackData string

	URL string
}

// NewCallbackButton создаёт кнопку с callback.
func NewCallbackButton(text, callbackData string) Button {
	return Button{Text: text, CallbackData: callbackData}
}

// IsValid проверяет корректность кнопки.
func (b Button) IsValid() bool {
	if b.Text == "" {
		return false
	}
	return (b.CallbackData != "" && len(b.CallbackData) <= 64) || b.URL != ""
}

// Message - сообщение в чат пользователя. Text форматирован в HTML.
type Message struct {
	ChatID  int64
	Kind    Kind
	Text    string
	Buttons [][]Button
}

// ErrEmptyMessage возвращается при попытке отправить пустое сообщение.
var ErrEmptyMessage = errors.New("notification: empty message")

// Validate проверяет сообщение перед отправкой.
func (m Message) Validate() error {
	if m.ChatID == 0 || m.Text == "" {
		return ErrEmptyMessage
	}
	for _, row := range m.Buttons {
		for _, b := range row {
			if !b.IsValid() {
				return errors.New("notification: invalid button " + b.Text)
			}
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Notifier доставляет сообщение в чат пользователя.
// Реализация - Telegram Bot API клиент.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotifierFunc адаптирует функцию к интерфейсу Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Recorder - Notifier, запоминающий сообщения. Используется в тестах и в режиме dry-run.
type Recorder struct {
	mu       sync.Mutex
	messages []Message

	// Fail, если задан, решает, вернуть ли ошибку для сообщения.
	Fail func(Message) error
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	if r.Fail != nil {
		if err := r.Fail(msg); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return nil
}

// Messages возвращает копию отправленных сообщений.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
