package penalty

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
)

type penaltyManagerImpl struct {
	penaltyRepo leave.PenaltyRepository
	dispatcher  compliance.Dispatcher
	clock       func() time.Time
}

// NewPenaltyManager builds the penalty ledger manager. The dispatcher
// receives a recompute request for every attendance whose penalties change
// and may be nil. Created penalties are reported in the returned changes;
// notifying about them is left to the caller once its writes are committed.
func NewPenaltyManager(penaltyRepo leave.PenaltyRepository, dispatcher compliance.Dispatcher) leave.PenaltyManager {
	return &penaltyManagerImpl{
		penaltyRepo: penaltyRepo,
		dispatcher:  dispatcher,
		clock:       time.Now,
	}
}

// EnsureHalfDayPenalty implements leave.PenaltyManager.
func (m *penaltyManagerImpl) EnsureHalfDayPenalty(ctx context.Context, req leave.EnsurePenaltyRequest) ([]leave.PenaltyChange, error) {
	if req.Portion != leave.PortionAM && req.Portion != leave.PortionPM {
		return nil, fmt.Errorf("%w: %q is not a half-day portion", leave.ErrInvalidPortion, req.Portion)
	}

	active, err := m.penaltyRepo.FindActivePenalties(ctx, req.EmployeeID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to find active penalties: %w", err)
	}

	for _, p := range active {
		if p.Portion == leave.PortionFull {
			return nil, nil
		}
	}

	var changes []leave.PenaltyChange
	for _, p := range active {
		if p.Portion != req.Portion {
			continue
		}
		// The portion is already penalised through another attendance.
		if p.TriggerAttendanceID != req.TriggerAttendanceID {
			return nil, nil
		}
		change, changed, err := m.updateInPlace(ctx, p, req)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, nil
		}
		changes = append(changes, change)
		return changes, m.publish(ctx, req.EmployeeID, req.TriggerAttendanceID)
	}

	change, err := m.create(ctx, req)
	if err != nil {
		return nil, err
	}
	changes = append(changes, change)
	return changes, m.publish(ctx, req.EmployeeID, req.TriggerAttendanceID)
}

// EnsureFullDayPenalty implements leave.PenaltyManager.
func (m *penaltyManagerImpl) EnsureFullDayPenalty(ctx context.Context, req leave.EnsurePenaltyRequest) ([]leave.PenaltyChange, error) {
	req.Portion = leave.PortionFull

	active, err := m.penaltyRepo.FindActivePenalties(ctx, req.EmployeeID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to find active penalties: %w", err)
	}

	if len(active) == 0 {
		change, err := m.create(ctx, req)
		if err != nil {
			return nil, err
		}
		return []leave.PenaltyChange{change}, m.publish(ctx, req.EmployeeID, req.TriggerAttendanceID)
	}

	var (
		changes  []leave.PenaltyChange
		triggers []string
	)

	// Oldest first, the earliest record becomes the single full-day penalty.
	keeper := active[0]
	change, changed, err := m.updateInPlace(ctx, keeper, req)
	if err != nil {
		return nil, err
	}
	if changed {
		changes = append(changes, change)
		triggers = append(triggers, keeper.TriggerAttendanceID, req.TriggerAttendanceID)
	}

	for _, p := range active[1:] {
		change, err := m.retract(ctx, p)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
		triggers = append(triggers, p.TriggerAttendanceID)
	}

	return changes, m.publish(ctx, req.EmployeeID, triggers...)
}

// ClearPenalties implements leave.PenaltyManager.
func (m *penaltyManagerImpl) ClearPenalties(ctx context.Context, filter leave.PenaltyFilter) ([]leave.PenaltyChange, error) {
	active, err := m.penaltyRepo.FindActivePenalties(ctx, filter.EmployeeID, filter.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to find active penalties: %w", err)
	}

	var (
		changes  []leave.PenaltyChange
		triggers []string
	)
	for _, p := range active {
		if !filter.Matches(p) {
			continue
		}
		change, err := m.retract(ctx, p)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
		triggers = append(triggers, p.TriggerAttendanceID)
	}
	return changes, m.publish(ctx, filter.EmployeeID, triggers...)
}

// Apply implements leave.PenaltyManager.
func (m *penaltyManagerImpl) Apply(ctx context.Context, actions []leave.PenaltyAction) ([]leave.PenaltyChange, error) {
	var all []leave.PenaltyChange
	for _, action := range actions {
		var (
			changes []leave.PenaltyChange
			err     error
		)
		switch action.Op {
		case leave.ActionEnsureHalfDay:
			changes, err = m.EnsureHalfDayPenalty(ctx, action.Ensure)
		case leave.ActionEnsureFullDay:
			changes, err = m.EnsureFullDayPenalty(ctx, action.Ensure)
		case leave.ActionClear:
			changes, err = m.ClearPenalties(ctx, action.Clear)
		default:
			err = fmt.Errorf("unknown penalty action %q", action.Op)
		}
		if err != nil {
			return all, err
		}
		all = append(all, changes...)
	}
	return all, nil
}

func (m *penaltyManagerImpl) create(ctx context.Context, req leave.EnsurePenaltyRequest) (leave.PenaltyChange, error) {
	created, err := m.penaltyRepo.Create(ctx, leave.PenaltyLeave{
		EmployeeID:          req.EmployeeID,
		CompanyID:           req.CompanyID,
		Date:                req.Date,
		Portion:             req.Portion,
		InfractionType:      req.InfractionType,
		Description:         req.Description,
		TriggerAttendanceID: req.TriggerAttendanceID,
		Status:              leave.PenaltyStatusActive,
		StartAt:             req.StartAt,
		EndAt:               req.EndAt,
	})
	if err != nil {
		return leave.PenaltyChange{}, fmt.Errorf("failed to create penalty: %w", err)
	}

	slog.Info("Penalty created",
		"penalty_id", created.ID,
		"employee_id", created.EmployeeID,
		"attendance_id", created.TriggerAttendanceID,
		"portion", created.Portion,
		"infraction", created.InfractionType)

	return changeOf(created, leave.ChangeCreated), nil
}

// updateInPlace rewrites p to match req. It reports false when p already
// matches.
func (m *penaltyManagerImpl) updateInPlace(ctx context.Context, p leave.PenaltyLeave, req leave.EnsurePenaltyRequest) (leave.PenaltyChange, bool, error) {
	if matches(p, req) {
		return leave.PenaltyChange{}, false, nil
	}

	p.Portion = req.Portion
	p.InfractionType = req.InfractionType
	p.Description = req.Description
	p.TriggerAttendanceID = req.TriggerAttendanceID
	p.StartAt = req.StartAt
	p.EndAt = req.EndAt
	if err := m.penaltyRepo.Update(ctx, p); err != nil {
		return leave.PenaltyChange{}, false, fmt.Errorf("failed to update penalty: %w", err)
	}

	slog.Info("Penalty updated",
		"penalty_id", p.ID,
		"employee_id", p.EmployeeID,
		"attendance_id", p.TriggerAttendanceID,
		"portion", p.Portion,
		"infraction", p.InfractionType)

	return changeOf(p, leave.ChangeUpdated), true, nil
}

func (m *penaltyManagerImpl) retract(ctx context.Context, p leave.PenaltyLeave) (leave.PenaltyChange, error) {
	if err := m.penaltyRepo.Retract(ctx, p.ID, m.clock()); err != nil {
		return leave.PenaltyChange{}, fmt.Errorf("failed to retract penalty: %w", err)
	}

	slog.Info("Penalty retracted",
		"penalty_id", p.ID,
		"employee_id", p.EmployeeID,
		"attendance_id", p.TriggerAttendanceID,
		"portion", p.Portion,
		"infraction", p.InfractionType)

	p.Status = leave.PenaltyStatusRetracted
	return changeOf(p, leave.ChangeRetracted), nil
}

// publish asks for a recompute of each distinct attendance in triggers.
func (m *penaltyManagerImpl) publish(ctx context.Context, employeeID string, triggers ...string) error {
	if m.dispatcher == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var targets []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	for _, id := range triggers {
		add(id)
	}

	for _, attendanceID := range targets {
		err := m.dispatcher.Dispatch(ctx, compliance.RecomputeRequest{
			EmployeeID:   employeeID,
			AttendanceID: attendanceID,
			Reason:       compliance.ReasonPenaltyChanged,
		})
		if err != nil {
			return fmt.Errorf("failed to dispatch recompute: %w", err)
		}
	}
	return nil
}

func matches(p leave.PenaltyLeave, req leave.EnsurePenaltyRequest) bool {
	return p.Portion == req.Portion &&
		p.InfractionType == req.InfractionType &&
		p.Description == req.Description &&
		p.TriggerAttendanceID == req.TriggerAttendanceID &&
		p.StartAt.Equal(req.StartAt) &&
		p.EndAt.Equal(req.EndAt)
}

func changeOf(p leave.PenaltyLeave, op leave.ChangeOp) leave.PenaltyChange {
	return leave.PenaltyChange{
		PenaltyID:      p.ID,
		Op:             op,
		Date:           p.Date,
		Portion:        p.Portion,
		InfractionType: p.InfractionType,
		Penalty:        p,
	}
}
