// Package workflow holds the issue state machine. Every operation takes an
// Issue value and returns a new value plus the domain events it implies; the
// engine never touches a store.
package workflow

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/validation"
	"github.com/spec-kit/issue-service/internal/visibility"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

const commentPreviewLength = 120

// Engine applies lifecycle rules using an injectable clock and id source.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides id generation for issues, comments and events.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine constructs the engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create builds the initial OPEN issue for a validated draft.
func (e *Engine) Create(v validation.ValidatedIssue, reporter domain.Principal) (domain.Issue, []events.Event) {
	now := e.now()
	issue := domain.Issue{
		ID:          domain.IssueID(e.newID()),
		Title:       v.Title,
		Description: v.Description,
		CategoryID:  v.CategoryID,
		Priority:    v.Priority,
		Status:      domain.StatusOpen,
		ReporterID:  reporter.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueAt:       domain.DueFrom(now, v.ResponseWindow),
		Attachments: append([]domain.FileID(nil), v.Attachments...),
	}
	return issue, []events.Event{e.event(events.EventIssueCreated, issue.ID, reporter, now, events.IssueCreatedPayload{
		CategoryID: issue.CategoryID,
		Priority:   issue.Priority,
		Title:      issue.Title,
		DueAt:      issue.DueAt,
	})}
}

// Transition moves issue to target. Pairs outside the transition table fail
// with InvalidTransition and leave the input untouched.
func (e *Engine) Transition(issue domain.Issue, target domain.Status, actor domain.Principal) (domain.Issue, []events.Event, error) {
	if !target.Valid() {
		return issue, nil, apperrors.NewValidationError("invalid status",
			apperrors.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", target)})
	}
	if !domain.CanTransition(issue.Status, target) {
		return issue, nil, apperrors.NewInvalidTransition(string(issue.Status), string(target))
	}
	if !visibility.CanTransition(issue, target, actor) {
		return issue, nil, apperrors.NewForbidden(fmt.Sprintf("%s may not move issue to %s", actor.Role, target))
	}

	now := e.now()
	next := issue.Clone()
	next.Status = target
	next.UpdatedAt = now
	switch target {
	case domain.StatusResolved:
		if next.ResolvedAt == nil {
			resolved := now
			next.ResolvedAt = &resolved
		}
	case domain.StatusReopened:
		next.ResolvedAt = nil
	}

	return next, []events.Event{e.event(events.EventIssueStatusChanged, issue.ID, actor, now, events.IssueStatusChangedPayload{
		OldStatus: issue.Status,
		NewStatus: target,
	})}, nil
}

// Reopen is the explicit REOPENED transition.
func (e *Engine) Reopen(issue domain.Issue, actor domain.Principal) (domain.Issue, []events.Event, error) {
	return e.Transition(issue, domain.StatusReopened, actor)
}

// Assign sets or clears the assignee. assignee nil un-assigns. Status is
// never changed; assigning the current assignee again is a no-op.
func (e *Engine) Assign(issue domain.Issue, assignee *domain.User, actor domain.Principal) (domain.Issue, []events.Event, error) {
	if !visibility.CanAssign(actor) {
		return issue, nil, apperrors.NewForbidden("insufficient role for assignment")
	}
	if err := requireOpen(issue, "assign"); err != nil {
		return issue, nil, err
	}
	var newAssignee *domain.UserID
	if assignee != nil {
		if !assignee.CanBeAssigned() {
			return issue, nil, apperrors.NewValidationError("invalid assignee",
				apperrors.FieldError{Field: "assignee_id", Message: "must be an active lecturer or admin"})
		}
		newAssignee = domain.UserIDPtr(assignee.ID)
	}
	if domain.SameUser(issue.AssigneeID, newAssignee) {
		return issue, nil, nil
	}

	now := e.now()
	next := issue.Clone()
	next.AssigneeID = newAssignee
	next.UpdatedAt = now
	return next, []events.Event{e.event(events.EventIssueAssigned, issue.ID, actor, now, events.IssueAssignedPayload{
		OldAssigneeID: issue.AssigneeID,
		NewAssigneeID: newAssignee,
	})}, nil
}

// SetPriority overrides the priority. due_at is category-driven and stays as is.
func (e *Engine) SetPriority(issue domain.Issue, priority domain.Priority, actor domain.Principal) (domain.Issue, []events.Event, error) {
	if !visibility.CanSetPriority(actor) {
		return issue, nil, apperrors.NewForbidden("insufficient role for priority override")
	}
	if !priority.Valid() {
		return issue, nil, apperrors.NewValidationError("invalid priority",
			apperrors.FieldError{Field: "priority", Message: fmt.Sprintf("must be one of %v", domain.Priorities)})
	}
	if err := requireOpen(issue, "set_priority"); err != nil {
		return issue, nil, err
	}
	if issue.Priority == priority {
		return issue, nil, nil
	}

	now := e.now()
	next := issue.Clone()
	next.Priority = priority
	next.UpdatedAt = now
	return next, []events.Event{e.event(events.EventIssuePriorityChanged, issue.ID, actor, now, events.IssuePriorityChangedPayload{
		OldPriority: issue.Priority,
		NewPriority: priority,
	})}, nil
}

// ChangeCategory moves the issue to another category and recomputes due_at
// from the original creation time.
func (e *Engine) ChangeCategory(issue domain.Issue, category domain.Category, actor domain.Principal) (domain.Issue, []events.Event, error) {
	if !visibility.CanChangeCategory(actor) {
		return issue, nil, apperrors.NewForbidden("insufficient role for category change")
	}
	if !category.Active {
		return issue, nil, apperrors.NewNotFound("category", map[string]any{"category_id": category.ID})
	}
	if err := requireOpen(issue, "change_category"); err != nil {
		return issue, nil, err
	}
	if issue.CategoryID == category.ID {
		return issue, nil, nil
	}

	now := e.now()
	next := issue.Clone()
	next.CategoryID = category.ID
	next.DueAt = domain.DueFrom(issue.CreatedAt, category.ResponseWindow)
	next.UpdatedAt = now
	return next, []events.Event{e.event(events.EventIssueCategoryChanged, issue.ID, actor, now, events.IssueCategoryChangedPayload{
		OldCategoryID: issue.CategoryID,
		NewCategoryID: category.ID,
		DueAt:         next.DueAt,
	})}, nil
}

// AddComment appends a comment authored by author.
func (e *Engine) AddComment(issue domain.Issue, author domain.Principal, body string) (domain.Issue, domain.Comment, []events.Event, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return issue, domain.Comment{}, nil, apperrors.NewValidationError("invalid comment",
			apperrors.FieldError{Field: "body", Message: "is required"})
	}
	if err := requireOpen(issue, "comment"); err != nil {
		return issue, domain.Comment{}, nil, err
	}

	now := e.now()
	comment := domain.Comment{
		ID:        domain.CommentID(e.newID()),
		IssueID:   issue.ID,
		AuthorID:  author.UserID,
		Body:      body,
		CreatedAt: now,
	}
	next := issue.Clone()
	next.Comments = append(next.Comments, comment)
	next.UpdatedAt = now
	return next, comment, []events.Event{e.event(events.EventIssueCommentAdded, issue.ID, author, now, events.IssueCommentAddedPayload{
		CommentID:   comment.ID,
		AuthorID:    comment.AuthorID,
		BodyPreview: stringPreview(body, commentPreviewLength),
	})}, nil
}

func (e *Engine) event(eventType events.EventType, issueID domain.IssueID, actor domain.Principal, at time.Time, payload any) events.Event {
	return events.Event{
		ID:        e.newID(),
		Type:      eventType,
		IssueID:   issueID,
		Actor:     events.ActorFrom(actor),
		Timestamp: at,
		Payload:   payload,
	}
}

// requireOpen rejects mutations on CLOSED issues; only REOPENED is accepted there.
func requireOpen(issue domain.Issue, action string) error {
	if issue.Status != domain.StatusClosed {
		return nil
	}
	return apperrors.NewDomainError(apperrors.CodeInvalidTransition,
		fmt.Sprintf("issue is closed; reopen it before %s", action),
		http.StatusConflict,
		map[string]any{"current": string(issue.Status), "action": action})
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
