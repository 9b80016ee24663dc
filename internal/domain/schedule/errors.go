package schedule

import "errors"

var (
	// ErrCalendarUnavailable means the employee has no resolvable work
	// calendar. Callers treat it as "no planned schedule".
	ErrCalendarUnavailable = errors.New("calendar unavailable")

	ErrWorkScheduleNotFound = errors.New("work schedule not found")
	ErrInvalidScheduleTime  = errors.New("invalid work schedule time")
)
