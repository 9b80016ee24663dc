package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
)

const ReasonNightly = "nightly_reconciliation"

// ReconcileJobs re-runs the pipeline over the previous day so that late
// leave approvals and schedule edits converge without a manual trigger.
type ReconcileJobs struct {
	attendanceRepo attendance.AttendanceRepository
	dispatcher     compliance.Dispatcher
	clock          func() time.Time
}

func NewReconcileJobs(attendanceRepo attendance.AttendanceRepository, dispatcher compliance.Dispatcher) *ReconcileJobs {
	return &ReconcileJobs{
		attendanceRepo: attendanceRepo,
		dispatcher:     dispatcher,
		clock:          time.Now,
	}
}

func (j *ReconcileJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("reconcile_previous_day", 1*time.Hour, j.ReconcilePreviousDay)
}

// ReconcilePreviousDay queues one recompute per employee who has an
// attendance anchored on the previous UTC day.
func (j *ReconcileJobs) ReconcilePreviousDay(ctx context.Context) error {
	now := j.clock().UTC()
	// Only run at midnight (00:00-00:59 UTC)
	if now.Hour() != 0 {
		return nil
	}

	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -1)

	slog.Info("Cron: Starting previous day reconciliation", "from", from, "to", to)

	employeeIDs, err := j.attendanceRepo.ListEmployeeIDsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to list employees with attendance: %w", err)
	}

	var errs []error
	queued := 0
	for _, employeeID := range employeeIDs {
		err := j.dispatcher.Dispatch(ctx, compliance.RecomputeRequest{
			EmployeeID: employeeID,
			From:       from,
			To:         to,
			Reason:     ReasonNightly,
		})
		if err != nil {
			slog.Error("Cron: Failed to queue recompute", "employee_id", employeeID, "error", err)
			errs = append(errs, fmt.Errorf("employee %s: %w", employeeID, err))
			continue
		}
		queued++
	}

	slog.Info("Cron: Previous day reconciliation queued", "employees", len(employeeIDs), "queued", queued)
	return errors.Join(errs...)
}
