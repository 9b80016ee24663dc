package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/interval"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Penalties and ordinary leaves share the leaves table. Penalty rows carry
// kind 'penalty' and the penalty-only columns.
const penaltyKind = "penalty"

const penaltyColumns = `
	id, employee_id, company_id, leave_date, portion, infraction_type, description,
	trigger_attendance_id, status, start_at, end_at, meeting_sent, warn_sent, expired_sent,
	created_at, updated_at, retracted_at`

type penaltyRepository struct {
	db *database.DB
}

func NewPenaltyRepository(db *database.DB) leave.PenaltyRepository {
	return &penaltyRepository{db: db}
}

// GetByID implements leave.PenaltyRepository.
func (r *penaltyRepository) GetByID(ctx context.Context, id string) (leave.PenaltyLeave, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + penaltyColumns + ` FROM leaves WHERE id = $1 AND kind = 'penalty'`

	p, err := scanPenalty(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return leave.PenaltyLeave{}, fmt.Errorf("%w: %s", leave.ErrPenaltyNotFound, id)
		}
		return leave.PenaltyLeave{}, fmt.Errorf("failed to get penalty %s: %w", id, err)
	}

	return p, nil
}

// FindActivePenalties implements leave.PenaltyRepository.
func (r *penaltyRepository) FindActivePenalties(ctx context.Context, employeeID string, date time.Time) ([]leave.PenaltyLeave, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + penaltyColumns + `
		FROM leaves
		WHERE employee_id = $1 AND kind = 'penalty' AND status = 'active'
			AND leave_date = $2::date
		ORDER BY created_at, id
	`

	return r.list(ctx, q, query, employeeID, date.Format("2006-01-02"))
}

// FindActivePenaltiesOverlapping implements leave.PenaltyRepository.
func (r *penaltyRepository) FindActivePenaltiesOverlapping(ctx context.Context, employeeID string, start time.Time, end time.Time) ([]leave.PenaltyLeave, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + penaltyColumns + `
		FROM leaves
		WHERE employee_id = $1 AND kind = 'penalty' AND status = 'active'
			AND start_at < $3 AND end_at > $2
		ORDER BY created_at, id
	`

	return r.list(ctx, q, query, employeeID, start.UTC(), end.UTC())
}

// Create implements leave.PenaltyRepository.
func (r *penaltyRepository) Create(ctx context.Context, p leave.PenaltyLeave) (leave.PenaltyLeave, error) {
	q := GetQuerier(ctx, r.db)

	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}

	query := `
		INSERT INTO leaves (
			id, employee_id, company_id, kind, leave_date, portion, infraction_type, description,
			trigger_attendance_id, status, start_at, end_at, is_unpaid,
			meeting_sent, warn_sent, expired_sent
		) VALUES (
			$1, $2, $3, $4, $5::date, $6, $7, $8,
			$9, $10, $11, $12, FALSE,
			$13, $14, $15
		)
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		p.ID, p.EmployeeID, p.CompanyID, penaltyKind, p.Date.Format("2006-01-02"),
		string(p.Portion), string(p.InfractionType), p.Description,
		p.TriggerAttendanceID, string(p.Status), p.StartAt.UTC(), p.EndAt.UTC(),
		p.Flags.MeetingSent, p.Flags.WarnSent, p.Flags.ExpiredSent,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return leave.PenaltyLeave{}, fmt.Errorf("failed to create penalty: %w", err)
	}

	p.StartAt = p.StartAt.UTC()
	p.EndAt = p.EndAt.UTC()
	return p, nil
}

// Update implements leave.PenaltyRepository.
func (r *penaltyRepository) Update(ctx context.Context, p leave.PenaltyLeave) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leaves
		SET portion = $2, infraction_type = $3, description = $4, trigger_attendance_id = $5,
			start_at = $6, end_at = $7, status = $8, retracted_at = $9, updated_at = NOW()
		WHERE id = $1 AND kind = 'penalty'
	`

	tag, err := q.Exec(ctx, query,
		p.ID, string(p.Portion), string(p.InfractionType), p.Description, p.TriggerAttendanceID,
		p.StartAt.UTC(), p.EndAt.UTC(), string(p.Status), p.RetractedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update penalty %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", leave.ErrPenaltyNotFound, p.ID)
	}

	return nil
}

// Retract implements leave.PenaltyRepository.
func (r *penaltyRepository) Retract(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leaves
		SET status = 'retracted', retracted_at = $2, updated_at = NOW()
		WHERE id = $1 AND kind = 'penalty'
	`

	tag, err := q.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to retract penalty %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", leave.ErrPenaltyNotFound, id)
	}

	return nil
}

// UpdateNotificationFlags implements leave.PenaltyRepository.
func (r *penaltyRepository) UpdateNotificationFlags(ctx context.Context, id string, flags leave.NotificationFlags) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leaves
		SET meeting_sent = $2, warn_sent = $3, expired_sent = $4
		WHERE id = $1 AND kind = 'penalty'
	`

	tag, err := q.Exec(ctx, query, id, flags.MeetingSent, flags.WarnSent, flags.ExpiredSent)
	if err != nil {
		return fmt.Errorf("failed to update notification flags of penalty %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", leave.ErrPenaltyNotFound, id)
	}

	return nil
}

func (r *penaltyRepository) list(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]leave.PenaltyLeave, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties: %w", err)
	}
	defer rows.Close()

	var out []leave.PenaltyLeave
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan penalty: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func scanPenalty(row pgx.Row) (leave.PenaltyLeave, error) {
	var p leave.PenaltyLeave
	var portion, infraction, st string
	err := row.Scan(
		&p.ID, &p.EmployeeID, &p.CompanyID, &p.Date, &portion, &infraction, &p.Description,
		&p.TriggerAttendanceID, &st, &p.StartAt, &p.EndAt,
		&p.Flags.MeetingSent, &p.Flags.WarnSent, &p.Flags.ExpiredSent,
		&p.CreatedAt, &p.UpdatedAt, &p.RetractedAt,
	)
	if err != nil {
		return leave.PenaltyLeave{}, err
	}
	p.Portion = leave.Portion(portion)
	p.InfractionType = leave.InfractionType(infraction)
	p.Status = leave.PenaltyStatus(st)
	p.Date = time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
	p.StartAt = p.StartAt.UTC()
	p.EndAt = p.EndAt.UTC()
	return p, nil
}

type leaveRepository struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.LeaveRepository {
	return &leaveRepository{db: db}
}

// FindCoveringLeave implements leave.LeaveRepository.
func (r *leaveRepository) FindCoveringLeave(ctx context.Context, employeeID string, start time.Time, end time.Time) (bool, error) {
	cover, err := r.approvedOverlapping(ctx, employeeID, start, end, false)
	if err != nil {
		return false, err
	}
	return interval.Covers(interval.New(start, end, ""), cover)
}

// FindUnpaidIntervals implements leave.LeaveRepository.
func (r *leaveRepository) FindUnpaidIntervals(ctx context.Context, employeeID string, start time.Time, end time.Time) ([]interval.Interval, error) {
	leaves, err := r.approvedOverlapping(ctx, employeeID, start, end, true)
	if err != nil {
		return nil, err
	}

	var out []interval.Interval
	for _, iv := range leaves {
		if clipped, ok := iv.Intersect(start, end); ok {
			out = append(out, clipped)
		}
	}
	interval.SortByStart(out)
	return out, nil
}

func (r *leaveRepository) approvedOverlapping(ctx context.Context, employeeID string, start, end time.Time, unpaidOnly bool) ([]interval.Interval, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT kind, start_at, end_at
		FROM leaves
		WHERE employee_id = $1 AND kind <> 'penalty' AND status = 'approved'
			AND start_at < $3 AND end_at > $2
			AND (NOT $4 OR is_unpaid)
		ORDER BY start_at
	`

	rows, err := q.Query(ctx, query, employeeID, start.UTC(), end.UTC(), unpaidOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved leaves: %w", err)
	}
	defer rows.Close()

	var out []interval.Interval
	for rows.Next() {
		var iv interval.Interval
		if err := rows.Scan(&iv.Tag, &iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("failed to scan leave: %w", err)
		}
		iv.Start = iv.Start.UTC()
		iv.End = iv.End.UTC()
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
