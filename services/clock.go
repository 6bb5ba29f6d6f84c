package services

import (
	"time"

	"hrms_go/utils"
)

// Clock pins "now" and the reference timezone that day-keys are computed in.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now, Location: loc}
}

// FixedClock always reports t. Used by tests and admin replays.
func FixedClock(t time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: func() time.Time { return t }, Location: loc}
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.loc())
	}
	return c.Now().In(c.loc())
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Today is the current day-key.
func (c Clock) Today() string {
	return utils.DayKey(c.now(), c.loc())
}
