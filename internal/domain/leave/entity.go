package leave

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

// Portion is the part of a day a penalty applies to.
type Portion string

const (
	PortionAM   Portion = "am"
	PortionPM   Portion = "pm"
	PortionFull Portion = "full"
)

// InfractionType is the attendance rule a penalty was raised for.
type InfractionType string

const (
	InfractionLateIn       InfractionType = "late_in"
	InfractionEarlyOut     InfractionType = "early_out"
	InfractionMissingShift InfractionType = "missing_shift"
)

var AllInfractionTypes = []InfractionType{
	InfractionLateIn,
	InfractionEarlyOut,
	InfractionMissingShift,
}

type PenaltyStatus string

const (
	PenaltyStatusActive    PenaltyStatus = "active"
	PenaltyStatusRetracted PenaltyStatus = "retracted"
)

type NotificationFlags struct {
	MeetingSent bool
	WarnSent    bool
	ExpiredSent bool
}

// PenaltyLeave is a leave record generated for an attendance infraction.
// At most one active penalty exists per (employee, date, portion), and an
// active full-day penalty excludes any active half-day one on that date.
type PenaltyLeave struct {
	ID                  string
	EmployeeID          string
	CompanyID           string
	Date                time.Time // calendar date at UTC midnight
	Portion             Portion
	InfractionType      InfractionType
	Description         string
	TriggerAttendanceID string
	Status              PenaltyStatus
	StartAt             time.Time
	EndAt               time.Time
	Flags               NotificationFlags
	CreatedAt           time.Time
	UpdatedAt           time.Time
	RetractedAt         *time.Time
}

func (p PenaltyLeave) IsActive() bool {
	return p.Status == PenaltyStatusActive
}

// Interval returns the instants the penalty withholds from worked time.
func (p PenaltyLeave) Interval() interval.Interval {
	return interval.New(p.StartAt, p.EndAt, string(p.Portion))
}

type LeaveStatus string

const (
	LeaveStatusPending   LeaveStatus = "pending"
	LeaveStatusApproved  LeaveStatus = "approved"
	LeaveStatusRejected  LeaveStatus = "rejected"
	LeaveStatusCancelled LeaveStatus = "cancelled"
)

// Leave is a non-penalty absence (annual, sick, unpaid...) owned by the
// leave workflow. The engine only reads it.
type Leave struct {
	ID         string
	EmployeeID string
	CompanyID  string
	Kind       string
	StartAt    time.Time
	EndAt      time.Time
	IsUnpaid   bool
	Status     LeaveStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (l Leave) Interval() interval.Interval {
	return interval.New(l.StartAt, l.EndAt, l.Kind)
}

// DateOf returns the calendar date of t in loc, normalised to UTC midnight
// the way DATE columns are scanned.
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
