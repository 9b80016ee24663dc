package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT e.id, e.user_id, e.company_id, e.contract_id, e.branch_id, e.work_schedule_id,
			e.full_name, e.timezone, e.created_at, e.updated_at, e.deleted_at,
			b.timezone, c.timezone
		FROM employees e
		JOIN companies c ON c.id = e.company_id
		LEFT JOIN branches b ON b.id = e.branch_id
		WHERE e.id = $1 AND e.deleted_at IS NULL
	`

	var emp employee.Employee
	err := q.QueryRow(ctx, query, id).Scan(
		&emp.ID, &emp.UserID, &emp.CompanyID, &emp.ContractID, &emp.BranchID, &emp.WorkScheduleID,
		&emp.FullName, &emp.Timezone, &emp.CreatedAt, &emp.UpdatedAt, &emp.DeletedAt,
		&emp.BranchTimezone, &emp.CompanyTimezone,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return employee.Employee{}, fmt.Errorf("%w: %s", employee.ErrEmployeeNotFound, id)
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}

	return emp, nil
}

// ListAdministratorUserIDs implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListAdministratorUserIDs(ctx context.Context, companyID string) ([]string, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id
		FROM users
		WHERE company_id = $1 AND role IN ('owner', 'manager')
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators of company %s: %w", companyID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
