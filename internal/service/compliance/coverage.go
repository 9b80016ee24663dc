package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

// coverage answers the detector's questions for one attendance, ignoring
// the attendance itself.
type coverage struct {
	leaveRepo      leave.LeaveRepository
	attendanceRepo attendance.AttendanceRepository
	employeeID     string
	attendanceID   string
}

func (c *coverage) LeaveCovers(ctx context.Context, start, end time.Time) (bool, error) {
	covered, err := c.leaveRepo.FindCoveringLeave(ctx, c.employeeID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to find covering leave: %w", err)
	}
	return covered, nil
}

func (c *coverage) AttendanceCovers(ctx context.Context, start, end time.Time) (bool, error) {
	list, err := c.attendanceRepo.ListOverlapping(ctx, c.employeeID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to list attendances: %w", err)
	}

	target := interval.New(start, end, "")
	for _, a := range list {
		if a.ID == c.attendanceID {
			continue
		}
		if span, ok := a.Span(); ok {
			if span.Overlaps(target) {
				return true, nil
			}
			continue
		}
		// Still clocked in.
		if a.ClockIn != nil && a.ClockIn.Before(end) {
			return true, nil
		}
	}
	return false, nil
}
