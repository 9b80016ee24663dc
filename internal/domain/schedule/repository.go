package schedule

import (
	"context"
	"time"
)

type WorkScheduleRepository interface {
	// GetByID returns the schedule with its weekday times loaded.
	GetByID(ctx context.Context, id string) (WorkSchedule, error)
}

type EmployeeScheduleAssignmentRepository interface {
	// GetActiveAssignment returns the assignment whose date range contains
	// date, or nil when the employee has none.
	GetActiveAssignment(ctx context.Context, employeeID string, date time.Time) (*EmployeeScheduleAssignment, error)
}
