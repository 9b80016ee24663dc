package compliance

import (
	"context"
	"time"
)

// Service is the compliance and reconciliation pipeline.
type Service interface {
	// ProcessAttendance recomputes every attendance of the same employee on
	// the dates the attendance touches, in clock-in order.
	ProcessAttendance(ctx context.Context, attendanceID string) (BatchResult, error)

	// RecomputeRange recomputes the employee's attendances anchored in
	// [from, to).
	RecomputeRange(ctx context.Context, employeeID string, from, to time.Time) (BatchResult, error)

	HandleLeaveChange(ctx context.Context, change LeaveChange) (BatchResult, error)

	// Recompute re-enters the pipeline for a request published during a
	// pass. The ctx must carry the guard of the enclosing invocation.
	Recompute(ctx context.Context, req RecomputeRequest) error
}

// Dispatcher delivers recompute requests emitted by state changes.
type Dispatcher interface {
	Dispatch(ctx context.Context, req RecomputeRequest) error
}

// Locker runs fn with exclusive access to one employee's records. The ctx
// handed to fn carries the transaction, if any.
type Locker interface {
	WithEmployeeLock(ctx context.Context, employeeID string, fn func(ctx context.Context) error) error
}
