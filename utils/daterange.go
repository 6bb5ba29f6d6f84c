package utils

import (
	"fmt"
	"time"
)

// DayLayout is the canonical day-key format.
const DayLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// ParseDayKey parses a day-key. Day arithmetic happens in UTC so DST never skips a key.
func ParseDayKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DayKey returns the day-key of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// DaySpan counts the days in the inclusive range [from, to] without expanding it.
func DaySpan(from, to string) (int, error) {
	start, err := ParseDayKey(from)
	if err != nil {
		return 0, err
	}
	end, err := ParseDayKey(to)
	if err != nil {
		return 0, err
	}
	if end.Before(start) {
		return 0, fmt.Errorf("from date %s is after to date %s", from, to)
	}
	// time.Duration saturates past ~292 years, so count via Unix seconds.
	return int((end.Unix()-start.Unix())/secondsPerDay) + 1, nil
}

// DateRange expands the inclusive range [from, to] into ordered day-keys.
// Callers bound the span with DaySpan first.
func DateRange(from, to string) ([]string, error) {
	n, err := DaySpan(from, to)
	if err != nil {
		return nil, err
	}
	start, _ := ParseDayKey(from)

	days := make([]string, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, start.AddDate(0, 0, i).Format(DayLayout))
	}
	return days, nil
}

// IsWeekend reports whether the day-key falls on Saturday or Sunday.
func IsWeekend(dayKey string) (bool, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return false, err
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}
