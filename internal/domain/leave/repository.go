package leave

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

// PenaltyRepository stores penalty leaves. Only the penalty manager writes
// through it.
type PenaltyRepository interface {
	GetByID(ctx context.Context, id string) (PenaltyLeave, error)

	// FindActivePenalties returns active penalties of the date, oldest first.
	FindActivePenalties(ctx context.Context, employeeID string, date time.Time) ([]PenaltyLeave, error)

	// FindActivePenaltiesOverlapping returns active penalties whose
	// [StartAt, EndAt) overlaps [start, end), oldest first.
	FindActivePenaltiesOverlapping(ctx context.Context, employeeID string, start, end time.Time) ([]PenaltyLeave, error)

	Create(ctx context.Context, penalty PenaltyLeave) (PenaltyLeave, error)
	Update(ctx context.Context, penalty PenaltyLeave) error
	Retract(ctx context.Context, id string, at time.Time) error
	UpdateNotificationFlags(ctx context.Context, id string, flags NotificationFlags) error
}

// LeaveRepository answers coverage questions about approved non-penalty
// leaves.
type LeaveRepository interface {
	// FindCoveringLeave reports whether approved non-penalty leaves together
	// cover [start, end) entirely.
	FindCoveringLeave(ctx context.Context, employeeID string, start, end time.Time) (bool, error)

	// FindUnpaidIntervals returns approved unpaid leave intervals clipped to
	// [start, end).
	FindUnpaidIntervals(ctx context.Context, employeeID string, start, end time.Time) ([]interval.Interval, error)
}
