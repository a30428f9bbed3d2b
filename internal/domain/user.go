package domain

import "time"

// User is a directory entry mirrored from the identity provider.
type User struct {
	ID           UserID
	Name         string
	Email        string
	Role         Role
	DepartmentID *DepartmentID
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanBeAssigned reports whether the user may hold issue assignments.
func (u User) CanBeAssigned() bool {
	return u.Active && u.Role.IsStaff()
}
