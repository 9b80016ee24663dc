package workentry

import "context"

// ReconcileInput is the target state for one attendance.
type ReconcileInput struct {
	EmployeeID   string
	ContractID   string
	AttendanceID string
	Segments     []Segment
}

// Reconciler aligns the ledger with a segment set using minimal mutations.
type Reconciler interface {
	Reconcile(ctx context.Context, in ReconcileInput) (Report, error)
}
