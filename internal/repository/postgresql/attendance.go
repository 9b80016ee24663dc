package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `id, employee_id, company_id, clock_in, clock_out, created_at, updated_at`

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE id = $1`

	att, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return attendance.Attendance{}, fmt.Errorf("%w: %s", attendance.ErrAttendanceNotFound, id)
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance %s: %w", id, err)
	}

	return att, nil
}

// ListByEmployeeBetween implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByEmployeeBetween(ctx context.Context, employeeID string, from time.Time, to time.Time) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE employee_id = $1
			AND COALESCE(clock_in, clock_out, created_at) >= $2
			AND COALESCE(clock_in, clock_out, created_at) < $3
		ORDER BY COALESCE(clock_in, clock_out, created_at), created_at, id
	`

	return a.list(ctx, q, query, employeeID, from.UTC(), to.UTC())
}

// ListOverlapping implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListOverlapping(ctx context.Context, employeeID string, start time.Time, end time.Time) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE employee_id = $1
			AND clock_in IS NOT NULL
			AND clock_in < $3
			AND (clock_out IS NULL OR clock_out > $2)
		ORDER BY clock_in, created_at, id
	`

	return a.list(ctx, q, query, employeeID, start.UTC(), end.UTC())
}

// ListEmployeeIDsBetween implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListEmployeeIDsBetween(ctx context.Context, from time.Time, to time.Time) ([]string, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT DISTINCT employee_id
		FROM attendances
		WHERE COALESCE(clock_in, clock_out, created_at) >= $1
			AND COALESCE(clock_in, clock_out, created_at) < $2
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list employees with attendance: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee ids: %w", err)
	}

	return ids, nil
}

func (a *attendanceRepository) list(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]attendance.Attendance, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	var out []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		out = append(out, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return out, nil
}

func scanAttendance(row pgx.Row) (attendance.Attendance, error) {
	var att attendance.Attendance
	err := row.Scan(
		&att.ID,
		&att.EmployeeID,
		&att.CompanyID,
		&att.ClockIn,
		&att.ClockOut,
		&att.CreatedAt,
		&att.UpdatedAt,
	)
	return att, err
}
