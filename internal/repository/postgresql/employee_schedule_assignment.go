package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeScheduleAssignmentRepository struct {
	db *database.DB
}

func NewEmployeeScheduleAssignmentRepository(db *database.DB) schedule.EmployeeScheduleAssignmentRepository {
	return &employeeScheduleAssignmentRepository{db: db}
}

// GetActiveAssignment implements schedule.EmployeeScheduleAssignmentRepository.
// When ranges overlap the most recently started assignment wins.
func (e *employeeScheduleAssignmentRepository) GetActiveAssignment(ctx context.Context, employeeID string, date time.Time) (*schedule.EmployeeScheduleAssignment, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, employee_id, work_schedule_id, start_date, end_date, created_at, updated_at
		FROM employee_schedule_assignments
		WHERE employee_id = $1
			AND $2::date BETWEEN start_date AND end_date
		ORDER BY start_date DESC, created_at DESC
		LIMIT 1
	`

	var a schedule.EmployeeScheduleAssignment
	err := q.QueryRow(ctx, query, employeeID, date.Format("2006-01-02")).Scan(
		&a.ID, &a.EmployeeID, &a.WorkScheduleID, &a.StartDate, &a.EndDate,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule assignment of employee %s: %w", employeeID, err)
	}

	return &a, nil
}
