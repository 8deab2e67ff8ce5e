// Package textfmt contains small helpers for Russian HTML messages sent through the Telegram Bot API.
package textfmt

import (
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ══════════════════════════════════════════════════════════════════════════════
// HTML
// ══════════════════════════════════════════════════════════════════════════════

// Escape escapes user-provided text for parse_mode=HTML.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped s in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Truncate cuts s to max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// ══════════════════════════════════════════════════════════════════════════════
// RUSSIAN PLURALS
// ══════════════════════════════════════════════════════════════════════════════

// Plural выбирает форму слова для числа n: one (1 час), few (2 часа), many (5 часов).
func Plural(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	mod100 := n % 100
	if mod100 >= 11 && mod100 <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}

// Count форматирует число вместе со словом: Count(3, "день", "дня", "дней") = "3 дня".
func Count(n int, one, few, many string) string {
	return strconv.Itoa(n) + " " + Plural(n, one, few, many)
}

// Hours - "1 час", "3 часа", "12 часов".
func Hours(n int) string { return Count(n, "час", "часа", "часов") }

// Days - "1 день", "2 дня", "5 дней".
func Days(n int) string { return Count(n, "день", "дня", "дней") }

// Tasks - "1 задача", "2 задачи", "5 задач".
func Tasks(n int) string { return Count(n, "задача", "задачи", "задач") }

// ══════════════════════════════════════════════════════════════════════════════
// GAUGES
// ══════════════════════════════════════════════════════════════════════════════

// ProgressBar рисует полосу из length клеток, заполненную пропорционально current/max.
func ProgressBar(current, max, length int) string {
	if length <= 0 {
		return ""
	}
	filled := 0
	if max > 0 && current > 0 {
		filled = current * length / max
	}
	if filled > length {
		filled = length
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

// Stars - до пяти звёзд для приоритета 1..10.
func Stars(priority int) string {
	if priority > 5 {
		priority = 5
	}
	if priority < 1 {
		return ""
	}
	return strings.Repeat("⭐", priority)
}

// Medal returns the podium medal for ranks 1..3 and "N." otherwise.
func Medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return strconv.Itoa(rank) + "."
	}
}

// Number formats n with spaces between thousands: 12 345.
func Number(n int) string {
	if n < 0 {
		return "-" + Number(-n)
	}
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + " " + s[i:]
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// RELATIVE TIME
// ══════════════════════════════════════════════════════════════════════════════

// TimeLeft описывает, сколько осталось до срока: "менее часа", "1 час", "23 часа".
func TimeLeft(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours <= 0 {
		return "менее часа"
	}
	return Hours(hours)
}

// TimeAgo описывает давность просрочки: "менее часа назад", "3 часа назад", "вчера", "5 дней назад".
func TimeAgo(d time.Duration) string {
	if d < time.Hour {
		return "менее часа назад"
	}
	days := int(d / (24 * time.Hour))
	switch days {
	case 0:
		return Hours(int(d/time.Hour)) + " назад"
	case 1:
		return "вчера"
	default:
		return Days(days) + " назад"
	}
}
