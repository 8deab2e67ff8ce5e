package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an IntervalSchedule.
func Every(interval time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: interval}
}

func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// CronSchedule - стандартное 5-польное выражение: минута час день месяц день_недели.
// Поддерживаются *, */n, n, n-m, n-m/s и списки через запятую.
// Выражение вычисляется в заданном часовом поясе (местное время бота).
//
// Примеры:
//   - "*/30 * * * *" - каждые 30 минут
//   - "0 9 * * *"    - каждый день в 09:00
//   - "0 20 * * 0"   - по воскресеньям в 20:00
type CronSchedule struct {
	raw      string
	loc      *time.Location
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64

	// Если ограничены и день месяца, и день недели, достаточно совпадения любого.
	daysStar     bool
	weekdaysStar bool
}

// ParseCron parses a cron expression evaluated in loc (nil means UTC).
func ParseCron(expr string, loc *time.Location) (*CronSchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}

	cs := &CronSchedule{
		raw:          strings.Join(fields, " "),
		loc:          loc,
		daysStar:     fields[2] == "*",
		weekdaysStar: fields[4] == "*",
	}

	specs := []struct {
		name     string
		dst      *uint64
		min, max int
	}{
		{"minute", &cs.minutes, 0, 59},
		{"hour", &cs.hours, 0, 23},
		{"day", &cs.days, 1, 31},
		{"month", &cs.months, 1, 12},
		{"weekday", &cs.weekdays, 0, 7},
	}
	for i, spec := range specs {
		bits, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, spec.name, err)
		}
		*spec.dst = bits
	}

	// 7 is an alias for Sunday.
	if cs.weekdays&(1<<7) != 0 {
		cs.weekdays |= 1
		cs.weekdays &^= 1 << 7
	}
	return cs, nil
}

// MustParseCron is ParseCron that panics; for package-level defaults.
func MustParseCron(expr string, loc *time.Location) *CronSchedule {
	cs, err := ParseCron(expr, loc)
	if err != nil {
		panic(err)
	}
	return cs
}

func parseField(field string, min, max int) (uint64, error) {
	var bits uint64
	for _, part := range strings.Split(field, ",") {
		lo, hi, step := min, max, 1

		rangePart := part
		if i := strings.IndexByte(part, '/'); i >= 0 {
			s, err := strconv.Atoi(part[i+1:])
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step %q", part[i+1:])
			}
			step = s
			rangePart = part[:i]
		}

		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			a, err1 := strconv.Atoi(bounds[0])
			b, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || a > b {
				return 0, fmt.Errorf("invalid range %q", rangePart)
			}
			lo, hi = a, b
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", rangePart)
			}
			lo = v
			if step == 1 {
				hi = v
			}
		}

		if lo < min || hi > max {
			return 0, fmt.Errorf("value out of range [%d-%d] in %q", min, max, part)
		}
		for v := lo; v <= hi; v += step {
			bits |= 1 << uint(v)
		}
	}
	return bits, nil
}

func has(bits uint64, v int) bool {
	return bits&(1<<uint(v)) != 0
}

func (cs *CronSchedule) dayMatches(t time.Time) bool {
	dom := has(cs.days, t.Day())
	dow := has(cs.weekdays, int(t.Weekday()))
	if !cs.daysStar && !cs.weekdaysStar {
		return dom || dow
	}
	return dom && dow
}

// Next returns the first matching minute strictly after t, in t's location.
// The zero time means no match within five years.
func (cs *CronSchedule) Next(t time.Time) time.Time {
	orig := t.Location()
	t = t.In(cs.loc).Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !has(cs.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, cs.loc)
			continue
		}
		if !cs.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, cs.loc)
			continue
		}
		if !has(cs.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, cs.loc)
			continue
		}
		if !has(cs.minutes, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t.In(orig)
	}
	return time.Time{}
}

func (cs *CronSchedule) String() string {
	return cs.raw
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSING
// ══════════════════════════════════════════════════════════════════════════════

// ParseSchedule accepts "@every <duration>", "@hourly", "@daily", "@weekly"
// or a 5-field cron expression evaluated in loc.
func ParseSchedule(spec string, loc *time.Location) (Schedule, error) {
	spec = strings.TrimSpace(spec)

	switch {
	case strings.HasPrefix(spec, "@every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every ")))
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", spec, err)
		}
		if d < time.Second {
			return nil, fmt.Errorf("schedule %q: interval must be at least 1s", spec)
		}
		return Every(d), nil
	case spec == "@hourly":
		return ParseCron("0 * * * *", loc)
	case spec == "@daily":
		return ParseCron("0 0 * * *", loc)
	case spec == "@weekly":
		return ParseCron("0 0 * * 0", loc)
	}
	return ParseCron(spec, loc)
}
