package employee

import "context"

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)

	// ListAdministratorUserIDs returns the user IDs of owners and managers
	// of a company. Penalty notices are addressed to them.
	ListAdministratorUserIDs(ctx context.Context, companyID string) ([]string, error)
}
