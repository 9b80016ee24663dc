package leave

import (
	"context"
	"time"
)

// EnsurePenaltyRequest describes the penalty an infraction calls for.
type EnsurePenaltyRequest struct {
	EmployeeID          string
	CompanyID           string
	Date                time.Time
	Portion             Portion
	InfractionType      InfractionType
	Description         string
	TriggerAttendanceID string
	StartAt             time.Time
	EndAt               time.Time
}

// PenaltyFilter selects active penalties to retract. Empty Portions or
// Types match any value.
type PenaltyFilter struct {
	EmployeeID          string
	Date                time.Time
	Portions            []Portion
	Types               []InfractionType
	TriggerAttendanceID string
}

func (f PenaltyFilter) Matches(p PenaltyLeave) bool {
	if !p.IsActive() || p.EmployeeID != f.EmployeeID || !p.Date.Equal(f.Date) {
		return false
	}
	if p.TriggerAttendanceID != f.TriggerAttendanceID {
		return false
	}
	if len(f.Portions) > 0 && !containsPortion(f.Portions, p.Portion) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, p.InfractionType) {
		return false
	}
	return true
}

type ActionOp string

const (
	ActionEnsureHalfDay ActionOp = "ensure_half_day"
	ActionEnsureFullDay ActionOp = "ensure_full_day"
	ActionClear         ActionOp = "clear"
)

// PenaltyAction is one instruction produced by infraction detection.
type PenaltyAction struct {
	Op     ActionOp
	Ensure EnsurePenaltyRequest
	Clear  PenaltyFilter
}

type ChangeOp string

const (
	ChangeCreated   ChangeOp = "created"
	ChangeUpdated   ChangeOp = "updated"
	ChangeRetracted ChangeOp = "retracted"
)

// PenaltyChange describes one write. Penalty is the record as it stood
// after the write.
type PenaltyChange struct {
	PenaltyID      string         `json:"penalty_id"`
	Op             ChangeOp       `json:"op"`
	Date           time.Time      `json:"date"`
	Portion        Portion        `json:"portion"`
	InfractionType InfractionType `json:"infraction_type"`
	Penalty        PenaltyLeave   `json:"-"`
}

// PenaltyManager maintains penalty leaves. Every call is visible to
// subsequent reads in the same transaction.
type PenaltyManager interface {
	EnsureHalfDayPenalty(ctx context.Context, req EnsurePenaltyRequest) ([]PenaltyChange, error)
	EnsureFullDayPenalty(ctx context.Context, req EnsurePenaltyRequest) ([]PenaltyChange, error)
	ClearPenalties(ctx context.Context, filter PenaltyFilter) ([]PenaltyChange, error)
	Apply(ctx context.Context, actions []PenaltyAction) ([]PenaltyChange, error)
}

func containsPortion(list []Portion, p Portion) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func containsType(list []InfractionType, t InfractionType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
