package domain

import "time"

// Category classifies an issue and drives its default priority and SLA window.
type Category struct {
	ID              CategoryID
	Name            string
	DefaultPriority Priority
	ResponseWindow  time.Duration
	DepartmentID    DepartmentID
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CategoryDefaults is what the registry supplies to issue creation.
type CategoryDefaults struct {
	CategoryID     CategoryID
	Priority       Priority
	ResponseWindow time.Duration
	DepartmentID   DepartmentID
}

// Defaults projects the category onto the values used at creation time.
func (c Category) Defaults() CategoryDefaults {
	return CategoryDefaults{
		CategoryID:     c.ID,
		Priority:       c.DefaultPriority,
		ResponseWindow: c.ResponseWindow,
		DepartmentID:   c.DepartmentID,
	}
}
