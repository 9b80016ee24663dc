package auth

// Role is the company role carried in access tokens.
type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Reviews attendance compliance
	RoleEmployee Role = "employee" // No access to the admin API
)

// IsAdministrator reports whether the role may use the admin API.
func (r Role) IsAdministrator() bool {
	return r == RoleOwner || r == RoleManager
}

// Claims is the identity extracted from a verified token.
type Claims struct {
	UserID    string
	CompanyID string
	Role      Role
}
