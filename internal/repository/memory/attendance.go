package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

type attendanceRepository struct {
	store *Store
}

func NewAttendanceRepository(store *Store) attendance.AttendanceRepository {
	return &attendanceRepository{store: store}
}

// GetByID implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByID(_ context.Context, id string) (attendance.Attendance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.attendances[id]
	if !ok {
		return attendance.Attendance{}, notFound(attendance.ErrAttendanceNotFound, id)
	}
	return a, nil
}

// ListByEmployeeBetween implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListByEmployeeBetween(_ context.Context, employeeID string, from, to time.Time) ([]attendance.Attendance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []attendance.Attendance
	for _, a := range r.store.attendances {
		if a.EmployeeID != employeeID {
			continue
		}
		anchor := a.Anchor()
		if !anchor.Before(from) && anchor.Before(to) {
			out = append(out, a)
		}
	}
	sortAttendances(out)
	return out, nil
}

// ListOverlapping implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListOverlapping(_ context.Context, employeeID string, start, end time.Time) ([]attendance.Attendance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []attendance.Attendance
	for _, a := range r.store.attendances {
		if a.EmployeeID != employeeID || a.ClockIn == nil {
			continue
		}
		if !a.ClockIn.Before(end) {
			continue
		}
		if a.ClockOut != nil && !a.ClockOut.After(start) {
			continue
		}
		out = append(out, a)
	}
	sortAttendances(out)
	return out, nil
}

// ListEmployeeIDsBetween implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListEmployeeIDsBetween(_ context.Context, from, to time.Time) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, a := range r.store.attendances {
		anchor := a.Anchor()
		if anchor.Before(from) || !anchor.Before(to) {
			continue
		}
		if _, ok := seen[a.EmployeeID]; ok {
			continue
		}
		seen[a.EmployeeID] = struct{}{}
		out = append(out, a.EmployeeID)
	}
	sort.Strings(out)
	return out, nil
}

func sortAttendances(list []attendance.Attendance) {
	sort.Slice(list, func(i, j int) bool {
		ai, aj := list[i].Anchor(), list[j].Anchor()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return list[i].ID < list[j].ID
	})
}
