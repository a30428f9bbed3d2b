package domain

import "time"

// ChangeType captures what changed in a history entry.
type ChangeType string

const (
	ChangeTypeStatus   ChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee ChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePriority ChangeType = "PRIORITY_CHANGE"
	ChangeTypeCategory ChangeType = "CATEGORY_CHANGE"
)

// IssueHistory is an immutable audit trail entry.
type IssueHistory struct {
	ID         string
	IssueID    IssueID
	ActorID    *UserID
	ChangeType ChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
