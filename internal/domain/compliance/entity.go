package compliance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/shopspring/decimal"
)

type Classification string

const (
	ClassificationNone            Classification = "none"
	ClassificationHalfDayLateIn   Classification = "half_day_late_in"
	ClassificationHalfDayEarlyOut Classification = "half_day_early_out"
	ClassificationFullDay         Classification = "full_day"
	ClassificationMissingShift    Classification = "missing_shift"
	ClassificationNoSchedule      Classification = "no_schedule"
)

// SideResult is the verdict for one side (clock-in or clock-out) of an
// attendance.
type SideResult struct {
	Classification Classification `json:"classification"`
	Portion        leave.Portion  `json:"portion,omitempty"`
	Expected       *time.Time     `json:"expected,omitempty"`
	Actual         *time.Time     `json:"actual,omitempty"`
	DelayMinutes   int            `json:"delay_minutes"`
}

const (
	ReasonPenaltyChanged = "penalty_changed"
	// ReasonLeaveChange requests carry the leave window in From and To;
	// the pipeline widens it to the local days the leave touches.
	ReasonLeaveChange = "leave_change"
)

// RecomputeRequest asks for the pipeline to run again over an employee's
// date range, or over a single attendance when AttendanceID is set.
type RecomputeRequest struct {
	EmployeeID   string
	AttendanceID string
	LeaveID      string
	From         time.Time
	To           time.Time
	Reason       string
}

// LeaveChange announces that a leave covering [Start, End) was created,
// approved, cancelled or edited.
type LeaveChange struct {
	EmployeeID string
	LeaveID    string
	Start      time.Time
	End        time.Time
}

// Request turns the change into a queued recompute.
func (c LeaveChange) Request() RecomputeRequest {
	return RecomputeRequest{
		EmployeeID: c.EmployeeID,
		LeaveID:    c.LeaveID,
		From:       c.Start,
		To:         c.End,
		Reason:     ReasonLeaveChange,
	}
}

// Result is the structured outcome of one attendance pass.
type Result struct {
	AttendanceID      string                `json:"attendance_id"`
	EmployeeID        string                `json:"employee_id"`
	CheckIn           SideResult            `json:"check_in"`
	CheckOut          SideResult            `json:"check_out"`
	MissingShifts     []leave.Portion       `json:"missing_shifts,omitempty"`
	PenaltyChanges    []leave.PenaltyChange `json:"penalty_changes"`
	Entries           workentry.Report      `json:"entries"`
	WorkedHours       decimal.Decimal       `json:"worked_hours"`
	OvertimeHours     decimal.Decimal       `json:"overtime_hours"`
	SkippedDetection  bool                  `json:"skipped_detection"`
	CalendarAvailable bool                  `json:"calendar_available"`
}

type Failure struct {
	AttendanceID string `json:"attendance_id"`
	Error        string `json:"error"`
}

// BatchResult collects the passes of a multi-attendance recompute. Pure
// failures land in Failures while the batch continues.
type BatchResult struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures,omitempty"`
}

// Find returns the result of one attendance.
func (b BatchResult) Find(attendanceID string) (Result, bool) {
	for _, r := range b.Results {
		if r.AttendanceID == attendanceID {
			return r, true
		}
	}
	return Result{}, false
}
