package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

var day = timeutil.Date{Year: 2024, Month: time.March, Day: 10}

func TestApplyStreak_FirstCompletion(t *testing.T) {
	p := NewProgress(1)
	res := p.ApplyStreak(day)

	assert.Equal(t, StreakResult{NewStreak: 1, OldStreak: 0}, res)
	assert.Equal(t, 1, p.MaxStreak)
	assert.Equal(t, day, p.LastCompletedDate)
}

func TestApplyStreak_SameDayIsIdempotent(t *testing.T) {
	p := NewProgress(1)
	p.ApplyStreak(day)
	first := p
	res := p.ApplyStreak(day)

	assert.Equal(t, first, p)
	assert.Equal(t, 1, res.NewStreak)
	assert.False(t, res.Lost)
}

func TestApplyStreak_ConsecutiveDays(t *testing.T) {
	p := NewProgress(1)
	for i := 0; i < 5; i++ {
		p.ApplyStreak(day.AddDays(i))
	}
	assert.Equal(t, 5, p.CurrentStreak)
	assert.Equal(t, 5, p.MaxStreak)
}

func TestApplyStreak_GapResets(t *testing.T) {
	p := Progress{CurrentStreak: 4, MaxStreak: 6, LastCompletedDate: day}
	res := p.ApplyStreak(day.AddDays(3))

	assert.Equal(t, StreakResult{NewStreak: 1, OldStreak: 4, Lost: true}, res)
	assert.Equal(t, 6, p.MaxStreak)
}

func TestApplyStreak_GapAfterSingleDayIsNotLost(t *testing.T) {
	p := Progress{CurrentStreak: 1, MaxStreak: 1, LastCompletedDate: day}
	res := p.ApplyStreak(day.AddDays(2))

	assert.Equal(t, 1, res.NewStreak)
	assert.False(t, res.Lost)
}

func TestApplyStreak_AcrossMonthBoundary(t *testing.T) {
	last := timeutil.Date{Year: 2024, Month: time.February, Day: 29}
	p := Progress{CurrentStreak: 2, MaxStreak: 2, LastCompletedDate: last}
	res := p.ApplyStreak(timeutil.Date{Year: 2024, Month: time.March, Day: 1})

	assert.Equal(t, 3, res.NewStreak)
}

func TestIncrementCompleted_ResetsDailyCounter(t *testing.T) {
	p := NewProgress(1)
	p.IncrementCompleted(day)
	p.IncrementCompleted(day)
	require.Equal(t, 2, p.TasksToday(day))

	total := p.IncrementCompleted(day.AddDays(1))
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, p.TasksCompletedToday)
	assert.Equal(t, 0, p.TasksToday(day.AddDays(2)))
}

func TestAddXP(t *testing.T) {
	p := NewProgress(1)
	assert.False(t, p.AddXP(50))
	assert.True(t, p.AddXP(55))
	assert.Equal(t, 105, p.XP)
	assert.Equal(t, 2, p.Level)

	assert.False(t, p.AddXP(-500))
	assert.Equal(t, 105, p.XP)
}

func TestStreakAtRisk(t *testing.T) {
	p := Progress{CurrentStreak: 3, LastCompletedDate: day}
	assert.False(t, p.StreakAtRisk(day))
	assert.True(t, p.StreakAtRisk(day.AddDays(1)))
	assert.False(t, Progress{}.StreakAtRisk(day))
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(NewUserParams{TelegramID: 42, Username: "@neo"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ChatID)
	assert.Equal(t, "neo", u.Username)
	assert.True(t, u.RemindersEnabled)
	assert.Equal(t, "@neo", u.DisplayName())

	_, err = NewUser(NewUserParams{TelegramID: 0})
	assert.Error(t, err)
}
