package dto

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// CategoryRequest is used for create and update.
type CategoryRequest struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	DefaultPriority     domain.Priority `json:"default_priority"`
	ResponseWindowHours float64         `json:"response_window_hours"`
	DepartmentID        string          `json:"department_id"`
	Active              *bool           `json:"active"`
}

// CategoryResponse payload.
type CategoryResponse struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	DefaultPriority     domain.Priority `json:"default_priority"`
	ResponseWindowHours float64         `json:"response_window_hours"`
	DepartmentID        string          `json:"department_id"`
	Active              bool            `json:"active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
