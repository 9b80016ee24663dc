package workentry

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

type Kind string

const (
	KindRegular          Kind = "regular"
	KindOvertime         Kind = "overtime"
	KindPenaltyDeduction Kind = "penalty_deduction"
)

type State string

const (
	StateMutable   State = "mutable"
	StateValidated State = "validated"
)

// WorkEntry is a ledger record of accounted time over [Start, End).
// Validated entries are locked by payroll and never modified here.
type WorkEntry struct {
	ID                 string
	EmployeeID         string
	ContractID         string
	Start              time.Time
	End                time.Time
	Kind               Kind
	Portion            string
	SourceAttendanceID *string
	SourceLeaveID      *string
	Active             bool
	State              State
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (e WorkEntry) IsValidated() bool {
	return e.State == StateValidated
}

func (e WorkEntry) Interval() interval.Interval {
	return interval.New(e.Start, e.End, string(e.Kind))
}

// DedupKey identifies entries that describe the same accounted time.
func (e WorkEntry) DedupKey() string {
	return e.EmployeeID + "|" + e.ContractID + "|" + string(e.Kind) + "|" +
		e.Start.UTC().Format(time.RFC3339Nano) + "|" + e.End.UTC().Format(time.RFC3339Nano)
}

// Segment is a computed worked, overtime or deduction period for one
// attendance. It only lives for one reconciliation pass.
type Segment struct {
	Start         time.Time
	End           time.Time
	Kind          Kind
	Portion       string
	SourceLeaveID *string
}

func (s Segment) Interval() interval.Interval {
	return interval.New(s.Start, s.End, string(s.Kind)+"/"+s.Portion)
}

// Matches reports whether e already records exactly this segment.
func (s Segment) Matches(e WorkEntry) bool {
	return e.Start.Equal(s.Start) && e.End.Equal(s.End) && e.Kind == s.Kind
}

// Conflict records a segment that could not be reconciled without touching
// a validated entry.
type Conflict struct {
	EntryID string    `json:"entry_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Kind    Kind      `json:"kind"`
	Reason  string    `json:"reason"`
}

// Report summarises the mutations of one reconciliation pass.
type Report struct {
	Created      []string   `json:"created"`
	Updated      []string   `json:"updated"`
	Unchanged    []string   `json:"unchanged"`
	Deactivated  []string   `json:"deactivated"`
	Deduplicated []string   `json:"deduplicated"`
	Conflicts    []Conflict `json:"conflicts"`
	Partial      bool       `json:"partial"`
}

// Changed reports whether the pass mutated the ledger.
func (r Report) Changed() bool {
	return len(r.Created)+len(r.Updated)+len(r.Deactivated)+len(r.Deduplicated) > 0
}
