package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
)

type workScheduleRepository struct {
	store *Store
}

func NewWorkScheduleRepository(store *Store) schedule.WorkScheduleRepository {
	return &workScheduleRepository{store: store}
}

// GetByID implements schedule.WorkScheduleRepository.
func (r *workScheduleRepository) GetByID(_ context.Context, id string) (schedule.WorkSchedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ws, ok := r.store.schedules[id]
	if !ok || ws.DeletedAt != nil {
		return schedule.WorkSchedule{}, notFound(schedule.ErrWorkScheduleNotFound, id)
	}
	ws.Times = append([]schedule.WorkScheduleTime(nil), ws.Times...)
	return ws, nil
}

type employeeScheduleAssignmentRepository struct {
	store *Store
}

func NewEmployeeScheduleAssignmentRepository(store *Store) schedule.EmployeeScheduleAssignmentRepository {
	return &employeeScheduleAssignmentRepository{store: store}
}

// GetActiveAssignment implements schedule.EmployeeScheduleAssignmentRepository.
// The most recently started assignment wins when ranges overlap.
func (r *employeeScheduleAssignmentRepository) GetActiveAssignment(_ context.Context, employeeID string, date time.Time) (*schedule.EmployeeScheduleAssignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var matches []schedule.EmployeeScheduleAssignment
	for _, a := range r.store.assignments[employeeID] {
		start := time.Date(a.StartDate.Year(), a.StartDate.Month(), a.StartDate.Day(), 0, 0, 0, 0, time.UTC)
		end := time.Date(a.EndDate.Year(), a.EndDate.Month(), a.EndDate.Day(), 0, 0, 0, 0, time.UTC)
		if !day.Before(start) && !day.After(end) {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartDate.After(matches[j].StartDate)
	})
	found := matches[0]
	return &found, nil
}
