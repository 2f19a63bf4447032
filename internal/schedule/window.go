// Package schedule decides whether a scheduled invocation may run now.
package schedule

import (
	"slices"
	"time"
)

// Window is a daily time slot on selected weekdays, in a fixed timezone.
type Window struct {
	Weekdays   []time.Weekday
	Hour       int
	FromMinute int
	// ToMinute is inclusive.
	ToMinute int
	Location *time.Location
}

// Default is Monday, Thursday and Saturday, 12:00 to 12:15 local time.
func Default(loc *time.Location) Window {
	return Window{
		Weekdays:   []time.Weekday{time.Monday, time.Thursday, time.Saturday},
		Hour:       12,
		FromMinute: 0,
		ToMinute:   15,
		Location:   loc,
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	if !slices.Contains(w.Weekdays, t.Weekday()) {
		return false
	}
	if t.Hour() != w.Hour {
		return false
	}
	return t.Minute() >= w.FromMinute && t.Minute() <= w.ToMinute
}

// Allows reports whether an invocation at t may proceed. Manual triggers
// always may.
func (w Window) Allows(t time.Time, manual bool) bool {
	return manual || w.Contains(t)
}
