package shared

import "strconv"

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID is the internal surrogate key of a user.
type UserID int64

func (id UserID) Int64() int64   { return int64(id) }
func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// TaskID is the surrogate key of a task.
type TaskID int64

func (id TaskID) Int64() int64   { return int64(id) }
func (id TaskID) String() string { return strconv.FormatInt(int64(id), 10) }

// TelegramID represents a unique Telegram user identifier.
type TelegramID int64

// IsValid checks if the Telegram ID is valid (positive number).
func (t TelegramID) IsValid() bool {
	return t > 0
}

func (t TelegramID) Int64() int64   { return int64(t) }
func (t TelegramID) String() string { return strconv.FormatInt(int64(t), 10) }

// NewTelegramID creates a new TelegramID with validation.
func NewTelegramID(id int64) (TelegramID, error) {
	if id <= 0 {
		return 0, ErrInvalidTelegramID
	}
	return TelegramID(id), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Priority
// ═══════════════════════════════════════════════════════════════════════════

// Priority is task importance on a 1..10 scale.
type Priority int

const (
	MinPriority     Priority = 1
	MaxPriority     Priority = 10
	DefaultPriority Priority = 5
)

func (p Priority) IsValid() bool {
	return p >= MinPriority && p <= MaxPriority
}

// Clamp forces p into 1..10.
func (p Priority) Clamp() Priority {
	switch {
	case p < MinPriority:
		return MinPriority
	case p > MaxPriority:
		return MaxPriority
	default:
		return p
	}
}

// NewPriority validates p.
func NewPriority(p int) (Priority, error) {
	pr := Priority(p)
	if !pr.IsValid() {
		return 0, ErrInvalidPriority
	}
	return pr, nil
}
