package dto

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/visibility"
)

// CreateIssueRequest payload. Priority is ignored for students.
type CreateIssueRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	Priority    *domain.Priority `json:"priority"`
	Attachments []string         `json:"attachments"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.Status `json:"status"`
}

// AssignRequest payload. A null assignee_id un-assigns.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// PriorityRequest payload.
type PriorityRequest struct {
	Priority domain.Priority `json:"priority"`
}

// CategoryChangeRequest payload.
type CategoryChangeRequest struct {
	CategoryID string `json:"category_id"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body"`
}

// IssueResponse is an issue as seen by the caller.
type IssueResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CategoryID  string             `json:"category_id"`
	Priority    domain.Priority    `json:"priority"`
	Status      domain.Status      `json:"status"`
	ReporterID  string             `json:"reporter_id"`
	AssigneeID  *string            `json:"assignee_id"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	DueAt       time.Time          `json:"due_at"`
	ResolvedAt  *time.Time         `json:"resolved_at"`
	Attachments []string           `json:"attachments"`
	Overdue     bool               `json:"overdue"`
	Actions     visibility.Actions `json:"actions"`
}

// IssueDetailResponse adds the thread and visible history.
type IssueDetailResponse struct {
	IssueResponse
	Comments []CommentResponse `json:"comments"`
	History  []HistoryResponse `json:"history"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse represents an audit entry.
type HistoryResponse struct {
	ID         string            `json:"id"`
	ActorID    *string           `json:"actor_id,omitempty"`
	ChangeType domain.ChangeType `json:"change_type"`
	OldValue   map[string]any    `json:"old_value"`
	NewValue   map[string]any    `json:"new_value"`
	CreatedAt  time.Time         `json:"created_at"`
}
