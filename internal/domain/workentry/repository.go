package workentry

import (
	"context"
	"time"
)

// WorkEntryRepository is the ledger store.
type WorkEntryRepository interface {
	GetByID(ctx context.Context, id string) (WorkEntry, error)

	// FindByAttendance returns active and inactive entries linked to the
	// attendance, ordered by start.
	FindByAttendance(ctx context.Context, attendanceID string) ([]WorkEntry, error)

	// FindActiveBetween returns active entries of the employee overlapping
	// [start, end), ordered by start.
	FindActiveBetween(ctx context.Context, employeeID string, start, end time.Time) ([]WorkEntry, error)

	Create(ctx context.Context, entry WorkEntry) (WorkEntry, error)

	// Update rewrites start, end, kind, portion, contract, leave link and
	// active flag. It returns ErrEntryValidated for a validated entry.
	Update(ctx context.Context, entry WorkEntry) error

	// Deactivate clears the active flag. It returns ErrEntryValidated for a
	// validated entry.
	Deactivate(ctx context.Context, id string) error
}
