package domain

// Role determines permitted operations and the visible issue set.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may triage issues (lecturer or admin).
func (r Role) IsStaff() bool {
	return r == RoleLecturer || r == RoleAdmin
}

// Principal is the caller context supplied by the identity provider.
type Principal struct {
	UserID       UserID
	Role         Role
	DepartmentID *DepartmentID
}

// InDepartment reports whether the principal belongs to dept.
func (p Principal) InDepartment(dept DepartmentID) bool {
	return p.DepartmentID != nil && *p.DepartmentID == dept
}
