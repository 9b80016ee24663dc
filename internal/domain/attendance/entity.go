package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

// Attendance is a clock-in/clock-out pair recorded by the timekeeping
// system. The engine reads it and never mutates it.
type Attendance struct {
	ID         string
	EmployeeID string
	CompanyID  string
	ClockIn    *time.Time
	ClockOut   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the employee clocked in but not yet out.
func (a Attendance) IsOpen() bool {
	return a.ClockIn != nil && a.ClockOut == nil
}

// Anchor returns the instant used to order attendances: clock-in, or
// clock-out for a record without one.
func (a Attendance) Anchor() time.Time {
	if a.ClockIn != nil {
		return *a.ClockIn
	}
	if a.ClockOut != nil {
		return *a.ClockOut
	}
	return a.CreatedAt
}

// Span returns [ClockIn, ClockOut). The bool is false unless both are set.
func (a Attendance) Span() (interval.Interval, bool) {
	if a.ClockIn == nil || a.ClockOut == nil {
		return interval.Interval{}, false
	}
	return interval.New(*a.ClockIn, *a.ClockOut, ""), true
}

// Validate checks that clock-out, when set, is after clock-in.
func (a Attendance) Validate() error {
	if a.ClockIn != nil && a.ClockOut != nil && !a.ClockOut.After(*a.ClockIn) {
		return ErrInvalidClockOut
	}
	return nil
}
