// Package memory holds in-memory implementations of every store contract.
// It backs the memory driver and the engine tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/google/uuid"
)

// Store is the shared state behind the memory repositories.
type Store struct {
	mu sync.RWMutex

	employees      map[string]employee.Employee
	administrators map[string][]string
	schedules      map[string]schedule.WorkSchedule
	assignments    map[string][]schedule.EmployeeScheduleAssignment
	attendances    map[string]attendance.Attendance
	leaves         map[string]leave.Leave
	penalties      map[string]leave.PenaltyLeave
	entries        map[string]workentry.WorkEntry
	notifications  []*notification.Notification

	clock    func() time.Time
	lastTick time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		employees:      make(map[string]employee.Employee),
		administrators: make(map[string][]string),
		schedules:      make(map[string]schedule.WorkSchedule),
		assignments:    make(map[string][]schedule.EmployeeScheduleAssignment),
		attendances:    make(map[string]attendance.Attendance),
		leaves:         make(map[string]leave.Leave),
		penalties:      make(map[string]leave.PenaltyLeave),
		entries:        make(map[string]workentry.WorkEntry),
		clock:          time.Now,
		locks:          make(map[string]*sync.Mutex),
	}
}

// SetClock replaces the time source used for created/updated stamps.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// nowLocked returns a strictly increasing UTC timestamp so creation order is
// always recoverable from CreatedAt.
func (s *Store) nowLocked() time.Time {
	t := s.clock().UTC()
	if !t.After(s.lastTick) {
		t = s.lastTick.Add(time.Microsecond)
	}
	s.lastTick = t
	return t
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ============= Seeding =============

func (s *Store) PutEmployee(e employee.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

func (s *Store) SetAdministrators(companyID string, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.administrators[companyID] = append([]string(nil), userIDs...)
}

func (s *Store) PutWorkSchedule(ws schedule.WorkSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[ws.ID] = ws
}

func (s *Store) PutAssignment(a schedule.EmployeeScheduleAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	s.assignments[a.EmployeeID] = append(s.assignments[a.EmployeeID], a)
}

// PutAttendance inserts or replaces an attendance, the way the timekeeping
// system would.
func (s *Store) PutAttendance(a attendance.Attendance) attendance.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	now := s.nowLocked()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.ClockIn = utcPtr(a.ClockIn)
	a.ClockOut = utcPtr(a.ClockOut)
	s.attendances[a.ID] = a
	return a
}

// PutLeave inserts or replaces a non-penalty leave.
func (s *Store) PutLeave(l leave.Leave) leave.Leave {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = newID()
	}
	now := s.nowLocked()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	l.StartAt = l.StartAt.UTC()
	l.EndAt = l.EndAt.UTC()
	s.leaves[l.ID] = l
	return l
}

// PutWorkEntry inserts an entry as is, including validated ones written by
// payroll.
func (s *Store) PutWorkEntry(e workentry.WorkEntry) workentry.WorkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	now := s.nowLocked()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	s.entries[e.ID] = e
	return e
}

// ============= Inspection =============

// Penalties returns every penalty of the employee, retracted ones included.
func (s *Store) Penalties(employeeID string) []leave.PenaltyLeave {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.PenaltyLeave
	for _, p := range s.penalties {
		if p.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	sortPenalties(out)
	return out
}

// WorkEntries returns every entry of the employee, inactive ones included.
func (s *Store) WorkEntries(employeeID string) []workentry.WorkEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []workentry.WorkEntry
	for _, e := range s.entries {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

func (s *Store) Notifications() []*notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*notification.Notification(nil), s.notifications...)
}

// ============= Locking =============

type employeeSnapshot struct {
	penalties map[string]leave.PenaltyLeave
	entries   map[string]workentry.WorkEntry
}

// WithEmployeeLock serialises work per employee. Penalty and ledger writes
// made by fn are rolled back when it fails.
func (s *Store) WithEmployeeLock(ctx context.Context, employeeID string, fn func(ctx context.Context) error) (err error) {
	lock := s.employeeLock(employeeID)
	lock.Lock()
	defer lock.Unlock()

	snap := s.snapshot(employeeID)
	defer func() {
		if p := recover(); p != nil {
			s.restore(employeeID, snap)
			panic(p)
		}
	}()

	if err = fn(ctx); err != nil {
		s.restore(employeeID, snap)
		return err
	}
	return nil
}

func (s *Store) employeeLock(employeeID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[employeeID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[employeeID] = l
	}
	return l
}

func (s *Store) snapshot(employeeID string) employeeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := employeeSnapshot{
		penalties: make(map[string]leave.PenaltyLeave),
		entries:   make(map[string]workentry.WorkEntry),
	}
	for id, p := range s.penalties {
		if p.EmployeeID == employeeID {
			snap.penalties[id] = p
		}
	}
	for id, e := range s.entries {
		if e.EmployeeID == employeeID {
			snap.entries[id] = e
		}
	}
	return snap
}

func (s *Store) restore(employeeID string, snap employeeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.penalties {
		if p.EmployeeID == employeeID {
			delete(s.penalties, id)
		}
	}
	for id, p := range snap.penalties {
		s.penalties[id] = p
	}
	for id, e := range s.entries {
		if e.EmployeeID == employeeID {
			delete(s.entries, id)
		}
	}
	for id, e := range snap.entries {
		s.entries[id] = e
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func notFound(err error, id string) error {
	return fmt.Errorf("%w: %s", err, id)
}
