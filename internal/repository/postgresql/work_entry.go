package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const workEntryColumns = `
	id, employee_id, contract_id, start_at, end_at, kind, portion,
	source_attendance_id, source_leave_id, active, state, created_at, updated_at`

type workEntryRepository struct {
	db *database.DB
}

func NewWorkEntryRepository(db *database.DB) workentry.WorkEntryRepository {
	return &workEntryRepository{db: db}
}

// GetByID implements workentry.WorkEntryRepository.
func (r *workEntryRepository) GetByID(ctx context.Context, id string) (workentry.WorkEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + workEntryColumns + ` FROM work_entries WHERE id = $1`

	e, err := scanWorkEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return workentry.WorkEntry{}, fmt.Errorf("%w: %s", workentry.ErrWorkEntryNotFound, id)
		}
		return workentry.WorkEntry{}, fmt.Errorf("failed to get work entry %s: %w", id, err)
	}

	return e, nil
}

// FindByAttendance implements workentry.WorkEntryRepository.
func (r *workEntryRepository) FindByAttendance(ctx context.Context, attendanceID string) ([]workentry.WorkEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + workEntryColumns + `
		FROM work_entries
		WHERE source_attendance_id = $1
		ORDER BY start_at, created_at, id
	`

	return r.list(ctx, q, query, attendanceID)
}

// FindActiveBetween implements workentry.WorkEntryRepository.
func (r *workEntryRepository) FindActiveBetween(ctx context.Context, employeeID string, start time.Time, end time.Time) ([]workentry.WorkEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + workEntryColumns + `
		FROM work_entries
		WHERE employee_id = $1 AND active
			AND start_at < $3 AND end_at > $2
		ORDER BY start_at, created_at, id
	`

	return r.list(ctx, q, query, employeeID, start.UTC(), end.UTC())
}

// Create implements workentry.WorkEntryRepository.
func (r *workEntryRepository) Create(ctx context.Context, e workentry.WorkEntry) (workentry.WorkEntry, error) {
	q := GetQuerier(ctx, r.db)

	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.State == "" {
		e.State = workentry.StateMutable
	}
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()

	query := `
		INSERT INTO work_entries (
			id, employee_id, contract_id, start_at, end_at, kind, portion,
			source_attendance_id, source_leave_id, active, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		e.ID, e.EmployeeID, e.ContractID, e.Start, e.End, string(e.Kind), e.Portion,
		e.SourceAttendanceID, e.SourceLeaveID, e.Active, string(e.State),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return workentry.WorkEntry{}, fmt.Errorf("failed to create work entry: %w", err)
	}

	return e, nil
}

// Update implements workentry.WorkEntryRepository.
func (r *workEntryRepository) Update(ctx context.Context, e workentry.WorkEntry) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE work_entries
		SET contract_id = $2, start_at = $3, end_at = $4, kind = $5, portion = $6,
			source_leave_id = $7, active = $8, updated_at = NOW()
		WHERE id = $1 AND state = 'mutable'
	`

	tag, err := q.Exec(ctx, query,
		e.ID, e.ContractID, e.Start.UTC(), e.End.UTC(), string(e.Kind), e.Portion,
		e.SourceLeaveID, e.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update work entry %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, q, e.ID)
	}

	return nil
}

// Deactivate implements workentry.WorkEntryRepository.
func (r *workEntryRepository) Deactivate(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE work_entries
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND state = 'mutable'
	`

	tag, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate work entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, q, id)
	}

	return nil
}

// explainMiss tells a validated entry apart from a missing one after a
// guarded write touched no row.
func (r *workEntryRepository) explainMiss(ctx context.Context, q database.Querier, id string) error {
	var state string
	err := q.QueryRow(ctx, `SELECT state FROM work_entries WHERE id = $1`, id).Scan(&state)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", workentry.ErrWorkEntryNotFound, id)
		}
		return fmt.Errorf("failed to get work entry %s: %w", id, err)
	}
	return fmt.Errorf("%w: %s", workentry.ErrEntryValidated, id)
}

func (r *workEntryRepository) list(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]workentry.WorkEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work entries: %w", err)
	}
	defer rows.Close()

	var out []workentry.WorkEntry
	for rows.Next() {
		e, err := scanWorkEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func scanWorkEntry(row pgx.Row) (workentry.WorkEntry, error) {
	var e workentry.WorkEntry
	var kind, state string
	err := row.Scan(
		&e.ID, &e.EmployeeID, &e.ContractID, &e.Start, &e.End, &kind, &e.Portion,
		&e.SourceAttendanceID, &e.SourceLeaveID, &e.Active, &state, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return workentry.WorkEntry{}, err
	}
	e.Kind = workentry.Kind(kind)
	e.State = workentry.State(state)
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	return e, nil
}
