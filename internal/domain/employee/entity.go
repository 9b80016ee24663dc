package employee

import "time"

type Employee struct {
	ID             string
	UserID         *string
	CompanyID      string
	ContractID     string
	BranchID       *string
	WorkScheduleID *string
	FullName       string
	Timezone       *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time

	// Joined from branches and companies.
	BranchTimezone  *string
	CompanyTimezone *string
}

// TimezoneCandidates lists timezone names in resolution order: employee,
// branch, company. Empty values are skipped.
func (e Employee) TimezoneCandidates() []string {
	var out []string
	for _, tz := range []*string{e.Timezone, e.BranchTimezone, e.CompanyTimezone} {
		if tz != nil && *tz != "" {
			out = append(out, *tz)
		}
	}
	return out
}
