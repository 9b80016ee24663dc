package schedule

import (
	"context"
	"time"
)

// CalendarProvider resolves planned shift intervals for an employee.
type CalendarProvider interface {
	// ResolveLocation returns the employee's timezone, falling back through
	// branch and company to UTC.
	ResolveLocation(ctx context.Context, employeeID string) (*time.Location, error)

	// ResolveDayIntervals returns the shifts of the calendar day containing
	// day (interpreted in loc). It fails with ErrCalendarUnavailable when the
	// employee has no calendar assigned.
	ResolveDayIntervals(ctx context.Context, employeeID string, day time.Time, loc *time.Location) (DaySchedule, error)
}
