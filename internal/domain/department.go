package domain

import "time"

// Department represents an academic unit that owns categories.
type Department struct {
	ID          DepartmentID
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
