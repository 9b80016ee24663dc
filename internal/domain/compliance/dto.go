package compliance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// MaxRecomputeDays bounds a synchronous range recompute.
const MaxRecomputeDays = 62

// RecomputeRangeRequest is the body of the employee recompute endpoint.
// Both dates are inclusive.
type RecomputeRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	from time.Time
	to   time.Time
}

func (r *RecomputeRangeRequest) Validate() error {
	from, to, errs := validator.DateRange("start_date", r.StartDate, "end_date", r.EndDate, MaxRecomputeDays)
	if len(errs) > 0 {
		return errs
	}
	r.from, r.to = from, to
	return nil
}

// Window returns [start_date, end_date + 1 day). Only valid after Validate.
func (r *RecomputeRangeRequest) Window() (time.Time, time.Time) {
	return r.from, r.to
}

// LeaveChangeRequest is the body of the leave change endpoint. Start and
// End are RFC3339 instants, or dates where End is inclusive.
type LeaveChangeRequest struct {
	EmployeeID string `json:"employee_id"`
	LeaveID    string `json:"leave_id"`
	Start      string `json:"start"`
	End        string `json:"end"`

	start time.Time
	end   time.Time
}

func (r *LeaveChangeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	start, ok := parseBound(r.Start, false)
	if !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "start",
			Message: "start must be an RFC3339 timestamp or a YYYY-MM-DD date",
		})
	}
	end, endOK := parseBound(r.End, true)
	if !endOK {
		errs = append(errs, validator.ValidationError{
			Field:   "end",
			Message: "end must be an RFC3339 timestamp or a YYYY-MM-DD date",
		})
	}
	if ok && endOK && !end.After(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "end",
			Message: "end must be after start",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	r.start, r.end = start, end
	return nil
}

// ToLeaveChange converts a validated request.
func (r *LeaveChangeRequest) ToLeaveChange() LeaveChange {
	return LeaveChange{
		EmployeeID: r.EmployeeID,
		LeaveID:    r.LeaveID,
		Start:      r.start,
		End:        r.end,
	}
}

func parseBound(s string, inclusiveEnd bool) (time.Time, bool) {
	if t, ok := validator.IsValidDateTime(s); ok {
		return t, true
	}
	d, ok := validator.IsValidDate(s)
	if !ok {
		return time.Time{}, false
	}
	if inclusiveEnd {
		d = d.AddDate(0, 0, 1)
	}
	return d, true
}

// QueuedResponse acknowledges an asynchronous recompute.
type QueuedResponse struct {
	Queued     bool   `json:"queued"`
	EmployeeID string `json:"employee_id"`
}

type PenaltyResponse struct {
	ID                  string               `json:"id"`
	EmployeeID          string               `json:"employee_id"`
	Date                string               `json:"date"`
	Portion             leave.Portion        `json:"portion"`
	InfractionType      leave.InfractionType `json:"infraction_type"`
	Description         string               `json:"description"`
	TriggerAttendanceID string               `json:"trigger_attendance_id"`
	StartAt             time.Time            `json:"start_at"`
	EndAt               time.Time            `json:"end_at"`
	WarnSent            bool                 `json:"warn_sent"`
	CreatedAt           time.Time            `json:"created_at"`
}

func NewPenaltyResponse(p leave.PenaltyLeave) PenaltyResponse {
	return PenaltyResponse{
		ID:                  p.ID,
		EmployeeID:          p.EmployeeID,
		Date:                p.Date.Format("2006-01-02"),
		Portion:             p.Portion,
		InfractionType:      p.InfractionType,
		Description:         p.Description,
		TriggerAttendanceID: p.TriggerAttendanceID,
		StartAt:             p.StartAt,
		EndAt:               p.EndAt,
		WarnSent:            p.Flags.WarnSent,
		CreatedAt:           p.CreatedAt,
	}
}

type WorkEntryResponse struct {
	ID                 string          `json:"id"`
	ContractID         string          `json:"contract_id"`
	Start              time.Time       `json:"start"`
	End                time.Time       `json:"end"`
	Kind               workentry.Kind  `json:"kind"`
	Portion            string          `json:"portion,omitempty"`
	SourceAttendanceID *string         `json:"source_attendance_id,omitempty"`
	SourceLeaveID      *string         `json:"source_leave_id,omitempty"`
	Active             bool            `json:"active"`
	State              workentry.State `json:"state"`
}

func NewWorkEntryResponse(e workentry.WorkEntry) WorkEntryResponse {
	return WorkEntryResponse{
		ID:                 e.ID,
		ContractID:         e.ContractID,
		Start:              e.Start,
		End:                e.End,
		Kind:               e.Kind,
		Portion:            e.Portion,
		SourceAttendanceID: e.SourceAttendanceID,
		SourceLeaveID:      e.SourceLeaveID,
		Active:             e.Active,
		State:              e.State,
	}
}

// SSETokenResponse carries a short-lived token for the penalty stream.
type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
