package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

type penaltyRepository struct {
	store *Store
}

func NewPenaltyRepository(store *Store) leave.PenaltyRepository {
	return &penaltyRepository{store: store}
}

// GetByID implements leave.PenaltyRepository.
func (r *penaltyRepository) GetByID(_ context.Context, id string) (leave.PenaltyLeave, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.penalties[id]
	if !ok {
		return leave.PenaltyLeave{}, notFound(leave.ErrPenaltyNotFound, id)
	}
	return p, nil
}

// FindActivePenalties implements leave.PenaltyRepository.
func (r *penaltyRepository) FindActivePenalties(_ context.Context, employeeID string, date time.Time) ([]leave.PenaltyLeave, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []leave.PenaltyLeave
	for _, p := range r.store.penalties {
		if p.EmployeeID == employeeID && p.IsActive() && p.Date.Equal(date) {
			out = append(out, p)
		}
	}
	sortPenalties(out)
	return out, nil
}

// FindActivePenaltiesOverlapping implements leave.PenaltyRepository.
func (r *penaltyRepository) FindActivePenaltiesOverlapping(_ context.Context, employeeID string, start, end time.Time) ([]leave.PenaltyLeave, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	span := interval.New(start, end, "")
	var out []leave.PenaltyLeave
	for _, p := range r.store.penalties {
		if p.EmployeeID == employeeID && p.IsActive() && p.Interval().Overlaps(span) {
			out = append(out, p)
		}
	}
	sortPenalties(out)
	return out, nil
}

// Create implements leave.PenaltyRepository.
func (r *penaltyRepository) Create(_ context.Context, p leave.PenaltyLeave) (leave.PenaltyLeave, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	now := r.store.nowLocked()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.StartAt = p.StartAt.UTC()
	p.EndAt = p.EndAt.UTC()
	r.store.penalties[p.ID] = p
	return p, nil
}

// Update implements leave.PenaltyRepository.
func (r *penaltyRepository) Update(_ context.Context, p leave.PenaltyLeave) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.penalties[p.ID]
	if !ok {
		return notFound(leave.ErrPenaltyNotFound, p.ID)
	}
	existing.Portion = p.Portion
	existing.InfractionType = p.InfractionType
	existing.Description = p.Description
	existing.TriggerAttendanceID = p.TriggerAttendanceID
	existing.StartAt = p.StartAt.UTC()
	existing.EndAt = p.EndAt.UTC()
	existing.Status = p.Status
	existing.RetractedAt = p.RetractedAt
	existing.UpdatedAt = r.store.nowLocked()
	r.store.penalties[p.ID] = existing
	return nil
}

// Retract implements leave.PenaltyRepository.
func (r *penaltyRepository) Retract(_ context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.penalties[id]
	if !ok {
		return notFound(leave.ErrPenaltyNotFound, id)
	}
	at = at.UTC()
	p.Status = leave.PenaltyStatusRetracted
	p.RetractedAt = &at
	p.UpdatedAt = r.store.nowLocked()
	r.store.penalties[id] = p
	return nil
}

// UpdateNotificationFlags implements leave.PenaltyRepository.
func (r *penaltyRepository) UpdateNotificationFlags(_ context.Context, id string, flags leave.NotificationFlags) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.penalties[id]
	if !ok {
		return notFound(leave.ErrPenaltyNotFound, id)
	}
	p.Flags = flags
	r.store.penalties[id] = p
	return nil
}

type leaveRepository struct {
	store *Store
}

func NewLeaveRepository(store *Store) leave.LeaveRepository {
	return &leaveRepository{store: store}
}

// FindCoveringLeave implements leave.LeaveRepository.
func (r *leaveRepository) FindCoveringLeave(_ context.Context, employeeID string, start, end time.Time) (bool, error) {
	cover := r.approvedOverlapping(employeeID, start, end, false)
	return interval.Covers(interval.New(start, end, ""), cover)
}

// FindUnpaidIntervals implements leave.LeaveRepository.
func (r *leaveRepository) FindUnpaidIntervals(_ context.Context, employeeID string, start, end time.Time) ([]interval.Interval, error) {
	var out []interval.Interval
	for _, iv := range r.approvedOverlapping(employeeID, start, end, true) {
		if clipped, ok := iv.Intersect(start, end); ok {
			out = append(out, clipped)
		}
	}
	interval.SortByStart(out)
	return out, nil
}

func (r *leaveRepository) approvedOverlapping(employeeID string, start, end time.Time, unpaidOnly bool) []interval.Interval {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	span := interval.New(start, end, "")
	var out []interval.Interval
	for _, l := range r.store.leaves {
		if l.EmployeeID != employeeID || l.Status != leave.LeaveStatusApproved {
			continue
		}
		if unpaidOnly && !l.IsUnpaid {
			continue
		}
		if iv := l.Interval(); iv.Overlaps(span) {
			out = append(out, iv)
		}
	}
	return out
}

func sortPenalties(list []leave.PenaltyLeave) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
