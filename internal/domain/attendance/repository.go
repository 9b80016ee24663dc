package attendance

import (
	"context"
	"time"
)

// AttendanceRepository is the read side of the timekeeping store.
type AttendanceRepository interface {
	GetByID(ctx context.Context, id string) (Attendance, error)

	// ListByEmployeeBetween returns the employee's attendances whose anchor
	// instant falls in [from, to), ordered by anchor.
	ListByEmployeeBetween(ctx context.Context, employeeID string, from, to time.Time) ([]Attendance, error)

	// ListOverlapping returns attendances of the employee that overlap
	// [start, end). Open attendances overlap from their clock-in onward.
	ListOverlapping(ctx context.Context, employeeID string, start, end time.Time) ([]Attendance, error)

	// ListEmployeeIDsBetween returns the distinct employees having an
	// attendance anchored in [from, to).
	ListEmployeeIDsBetween(ctx context.Context, from, to time.Time) ([]string, error)
}
