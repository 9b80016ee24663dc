package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
)

type workEntryRepository struct {
	store *Store
}

func NewWorkEntryRepository(store *Store) workentry.WorkEntryRepository {
	return &workEntryRepository{store: store}
}

// GetByID implements workentry.WorkEntryRepository.
func (r *workEntryRepository) GetByID(_ context.Context, id string) (workentry.WorkEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.entries[id]
	if !ok {
		return workentry.WorkEntry{}, notFound(workentry.ErrWorkEntryNotFound, id)
	}
	return e, nil
}

// FindByAttendance implements workentry.WorkEntryRepository.
func (r *workEntryRepository) FindByAttendance(_ context.Context, attendanceID string) ([]workentry.WorkEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []workentry.WorkEntry
	for _, e := range r.store.entries {
		if e.SourceAttendanceID != nil && *e.SourceAttendanceID == attendanceID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// FindActiveBetween implements workentry.WorkEntryRepository.
func (r *workEntryRepository) FindActiveBetween(_ context.Context, employeeID string, start, end time.Time) ([]workentry.WorkEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	span := interval.New(start, end, "")
	var out []workentry.WorkEntry
	for _, e := range r.store.entries {
		if e.EmployeeID == employeeID && e.Active && e.Interval().Overlaps(span) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// Create implements workentry.WorkEntryRepository.
func (r *workEntryRepository) Create(_ context.Context, e workentry.WorkEntry) (workentry.WorkEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.State == "" {
		e.State = workentry.StateMutable
	}
	now := r.store.nowLocked()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	r.store.entries[e.ID] = e
	return e, nil
}

// Update implements workentry.WorkEntryRepository.
func (r *workEntryRepository) Update(_ context.Context, e workentry.WorkEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.entries[e.ID]
	if !ok {
		return notFound(workentry.ErrWorkEntryNotFound, e.ID)
	}
	if existing.IsValidated() {
		return workentry.ErrEntryValidated
	}
	existing.ContractID = e.ContractID
	existing.Start = e.Start.UTC()
	existing.End = e.End.UTC()
	existing.Kind = e.Kind
	existing.Portion = e.Portion
	existing.SourceLeaveID = e.SourceLeaveID
	existing.Active = e.Active
	existing.UpdatedAt = r.store.nowLocked()
	r.store.entries[e.ID] = existing
	return nil
}

// Deactivate implements workentry.WorkEntryRepository.
func (r *workEntryRepository) Deactivate(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[id]
	if !ok {
		return notFound(workentry.ErrWorkEntryNotFound, id)
	}
	if e.IsValidated() {
		return workentry.ErrEntryValidated
	}
	e.Active = false
	e.UpdatedAt = r.store.nowLocked()
	r.store.entries[id] = e
	return nil
}

func sortEntries(list []workentry.WorkEntry) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Start.Equal(list[j].Start) {
			return list[i].Start.Before(list[j].Start)
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
