package fixtures

import (
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
)

// Demo identifiers seeded into the memory driver.
const (
	DemoCompanyID  = "0199f0a0-0000-7000-8000-000000000001"
	DemoScheduleID = "0199f0a0-0000-7000-8000-000000000002"
	DemoEmployeeID = "0199f0a0-0000-7000-8000-000000000003"
	DemoContractID = "0199f0a0-0000-7000-8000-000000000004"
	DemoManagerID  = "0199f0a0-0000-7000-8000-000000000005"
)

// SeedDemo gives a fresh memory store one company, one manager and one
// employee on standard office hours, so the API can be exercised without
// a database.
func SeedDemo(store *memory.Store, timezone string) {
	tz := timezone
	scheduleID := DemoScheduleID

	store.PutWorkSchedule(StandardOfficeHours(DemoScheduleID, DemoCompanyID))
	store.PutEmployee(employee.Employee{
		ID:              DemoEmployeeID,
		CompanyID:       DemoCompanyID,
		ContractID:      DemoContractID,
		WorkScheduleID:  &scheduleID,
		FullName:        "Demo Employee",
		CompanyTimezone: &tz,
	})
	store.SetAdministrators(DemoCompanyID, DemoManagerID)
}
