package events

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated         EventType = "issue_created"
	EventIssueStatusChanged   EventType = "issue_status_changed"
	EventIssueAssigned        EventType = "issue_assigned"
	EventIssuePriorityChanged EventType = "issue_priority_changed"
	EventIssueCategoryChanged EventType = "issue_category_changed"
	EventIssueCommentAdded    EventType = "issue_comment_added"
)

// AllEventTypes lists every event the engine emits.
var AllEventTypes = []EventType{
	EventIssueCreated,
	EventIssueStatusChanged,
	EventIssueAssigned,
	EventIssuePriorityChanged,
	EventIssueCategoryChanged,
	EventIssueCommentAdded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID domain.UserID `json:"user_id"`
	Role   domain.Role   `json:"role"`
}

// ActorFrom builds the event actor for a principal.
func ActorFrom(p domain.Principal) Actor {
	return Actor{UserID: p.UserID, Role: p.Role}
}

// Event represents a domain event emitted by the workflow engine.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	IssueID   domain.IssueID `json:"issue_id"`
	Actor     Actor          `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   any            `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	CategoryID domain.CategoryID `json:"category_id"`
	Priority   domain.Priority   `json:"priority"`
	Title      string            `json:"title"`
	DueAt      time.Time         `json:"due_at"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	OldAssigneeID *domain.UserID `json:"old_assignee_id,omitempty"`
	NewAssigneeID *domain.UserID `json:"new_assignee_id,omitempty"`
}

// IssuePriorityChangedPayload payload.
type IssuePriorityChangedPayload struct {
	OldPriority domain.Priority `json:"old_priority"`
	NewPriority domain.Priority `json:"new_priority"`
}

// IssueCategoryChangedPayload payload.
type IssueCategoryChangedPayload struct {
	OldCategoryID domain.CategoryID `json:"old_category_id"`
	NewCategoryID domain.CategoryID `json:"new_category_id"`
	DueAt         time.Time         `json:"due_at"`
}

// IssueCommentAddedPayload payload.
type IssueCommentAddedPayload struct {
	CommentID   domain.CommentID `json:"comment_id"`
	AuthorID    domain.UserID    `json:"author_id"`
	BodyPreview string           `json:"body_preview"`
}
