package service

import (
	"time"

	"memobot/internal/model"
)

// Clock reports the current time. Only its calendar date in the local
// location is used for scheduling.
type Clock func() time.Time

// SystemClock is the wall clock in the process' local timezone.
func SystemClock() time.Time {
	return time.Now().In(time.Local)
}

func (c Clock) today() time.Time {
	if c == nil {
		return model.Day(SystemClock())
	}
	return model.Day(c())
}
