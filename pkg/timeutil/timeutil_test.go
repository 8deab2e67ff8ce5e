package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	instant := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, Date{2024, time.March, 11}, DateOf(instant, loc))
	assert.Equal(t, Date{2024, time.March, 10}, DateOf(instant, time.UTC))
}

func TestDate_AddDaysAcrossMonth(t *testing.T) {
	d := Date{2024, time.February, 28}

	assert.Equal(t, Date{2024, time.February, 29}, d.AddDays(1))
	assert.Equal(t, Date{2024, time.March, 1}, d.AddDays(2))
	assert.Equal(t, Date{2023, time.December, 31}, Date{2024, time.January, 1}.AddDays(-1))
}

func TestDate_ZeroAndCompare(t *testing.T) {
	assert.True(t, Date{}.IsZero())
	assert.Equal(t, "", Date{}.String())
	assert.Equal(t, "2024-05-01", Date{2024, time.May, 1}.String())

	a := Date{2024, time.May, 1}
	b := Date{2024, time.May, 3}
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))
}

func TestDateFromTime_RoundTrip(t *testing.T) {
	d := Date{2024, time.July, 4}
	assert.Equal(t, d, DateFromTime(d.UTC()))
	assert.True(t, DateFromTime(time.Time{}).IsZero())
}

func TestSameDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	a := time.Date(2024, 1, 1, 19, 30, 0, 0, time.UTC) // 00:30 next day in UTC+5
	b := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b, loc))
	assert.False(t, SameDay(a, b, time.UTC))
}

func TestParseDue(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, loc)

	got, err := ParseDue("20.06.2024 18:30", now, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 20, 18, 30, 0, 0, loc), got)

	got, err = ParseDue("20.06.2024", now, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 20, 23, 59, 0, 0, loc), got)

	got, err = ParseDue("завтра", now, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 16, 23, 59, 0, 0, loc), got)

	_, err = ParseDue("next friday", now, loc)
	assert.Error(t, err)
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
}
