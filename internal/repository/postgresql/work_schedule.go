package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type workScheduleRepositoryImpl struct {
	db *database.DB
}

func NewWorkScheduleRepository(db *database.DB) schedule.WorkScheduleRepository {
	return &workScheduleRepositoryImpl{db: db}
}

// GetByID implements schedule.WorkScheduleRepository.
func (w *workScheduleRepositoryImpl) GetByID(ctx context.Context, id string) (schedule.WorkSchedule, error) {
	q := GetQuerier(ctx, w.db)

	query := `
		SELECT id, company_id, name, hours_per_day, created_at, updated_at, deleted_at
		FROM work_schedules
		WHERE id = $1 AND deleted_at IS NULL
	`

	var ws schedule.WorkSchedule
	err := q.QueryRow(ctx, query, id).Scan(
		&ws.ID, &ws.CompanyID, &ws.Name, &ws.HoursPerDay,
		&ws.CreatedAt, &ws.UpdatedAt, &ws.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return schedule.WorkSchedule{}, fmt.Errorf("%w: %s", schedule.ErrWorkScheduleNotFound, id)
		}
		return schedule.WorkSchedule{}, fmt.Errorf("failed to get work schedule %s: %w", id, err)
	}

	times, err := w.listTimes(ctx, q, id)
	if err != nil {
		return schedule.WorkSchedule{}, err
	}
	ws.Times = times

	return ws, nil
}

func (w *workScheduleRepositoryImpl) listTimes(ctx context.Context, q database.Querier, workScheduleID string) ([]schedule.WorkScheduleTime, error) {
	query := `
		SELECT id, work_schedule_id, day_of_week, clock_in_time, break_start_time,
			   break_end_time, clock_out_time, is_next_day_checkout, created_at, updated_at
		FROM work_schedule_times
		WHERE work_schedule_id = $1
		ORDER BY day_of_week, clock_in_time
	`

	rows, err := q.Query(ctx, query, workScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list work schedule times: %w", err)
	}
	defer rows.Close()

	var times []schedule.WorkScheduleTime
	for rows.Next() {
		var t schedule.WorkScheduleTime
		err := rows.Scan(
			&t.ID, &t.WorkScheduleID, &t.DayOfWeek, &t.ClockInTime,
			&t.BreakStartTime, &t.BreakEndTime, &t.ClockOutTime, &t.IsNextDayCheckout,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work schedule time: %w", err)
		}
		times = append(times, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return times, nil
}
