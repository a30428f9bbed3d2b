package domain

import "time"

// Issue is the aggregate for academic support tickets.
type Issue struct {
	ID          IssueID
	Title       string
	Description string
	CategoryID  CategoryID
	Priority    Priority
	Status      Status
	ReporterID  UserID
	AssigneeID  *UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DueAt       time.Time
	ResolvedAt  *time.Time
	Attachments []FileID
	Comments    []Comment
}

// Comment is an append-only note on an issue thread.
type Comment struct {
	ID        CommentID
	IssueID   IssueID
	AuthorID  UserID
	Body      string
	CreatedAt time.Time
}

// Clone returns a deep copy so callers can derive new values without aliasing.
func (i Issue) Clone() Issue {
	out := i
	if i.AssigneeID != nil {
		assignee := *i.AssigneeID
		out.AssigneeID = &assignee
	}
	if i.ResolvedAt != nil {
		resolved := *i.ResolvedAt
		out.ResolvedAt = &resolved
	}
	if i.Attachments != nil {
		out.Attachments = append([]FileID(nil), i.Attachments...)
	}
	if i.Comments != nil {
		out.Comments = append([]Comment(nil), i.Comments...)
	}
	return out
}

// Overdue reports whether the issue is past its SLA window and still unsettled.
func (i Issue) Overdue(now time.Time) bool {
	if i.Status.Settled() || i.DueAt.IsZero() {
		return false
	}
	return now.After(i.DueAt)
}

// DueFrom computes the SLA deadline for an issue created at createdAt.
func DueFrom(createdAt time.Time, window time.Duration) time.Time {
	return createdAt.Add(window)
}
