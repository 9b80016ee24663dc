package memory

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
)

type employeeRepository struct {
	store *Store
}

func NewEmployeeRepository(store *Store) employee.EmployeeRepository {
	return &employeeRepository{store: store}
}

// GetByID implements employee.EmployeeRepository.
func (r *employeeRepository) GetByID(_ context.Context, id string) (employee.Employee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.employees[id]
	if !ok || e.DeletedAt != nil {
		return employee.Employee{}, notFound(employee.ErrEmployeeNotFound, id)
	}
	return e, nil
}

// ListAdministratorUserIDs implements employee.EmployeeRepository.
func (r *employeeRepository) ListAdministratorUserIDs(_ context.Context, companyID string) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]string(nil), r.store.administrators[companyID]...), nil
}
