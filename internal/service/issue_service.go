package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/validation"
	"github.com/spec-kit/issue-service/internal/visibility"
	"github.com/spec-kit/issue-service/internal/workflow"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
	"github.com/spec-kit/issue-service/pkg/util/retry"
)

// TransitionRecorder receives workflow counters.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, from, to domain.Status)
}

// IssueView is an issue rendered for one requester.
type IssueView struct {
	Issue   domain.Issue
	Overdue bool
	Actions visibility.Actions
}

// IssueDetail adds the comment thread and redacted history.
type IssueDetail struct {
	IssueView
	History []domain.IssueHistory
}

// IssueListFilter describes caller-supplied list filters. Role scoping is
// applied on top and cannot be widened by the caller.
type IssueListFilter struct {
	Statuses    []domain.Status
	Priorities  []domain.Priority
	CategoryID  *domain.CategoryID
	AssigneeID  *domain.UserID
	SearchTerm  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	OverdueOnly bool
	Limit       int
	Offset      int
}

// IssueService hosts the workflow engine: it loads issues, authorizes through
// the visibility filter, applies engine functions, persists, records history
// and publishes events.
type IssueService struct {
	issues     repository.IssueRepository
	comments   repository.CommentRepository
	history    repository.HistoryRepository
	users      repository.UserRepository
	categories *CategoryService
	validator  *validation.Validator
	engine     *workflow.Engine
	dispatcher events.Dispatcher
	metrics    TransitionRecorder
	retry      retry.Policy
	logger     *zap.Logger
	now        func() time.Time
}

// IssueDependencies bundles collaborators for issue service.
type IssueDependencies struct {
	IssueRepo   repository.IssueRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.HistoryRepository
	UserRepo    repository.UserRepository
	Categories  *CategoryService
	Validator   *validation.Validator
	Engine      *workflow.Engine
	Dispatcher  events.Dispatcher
	Metrics     TransitionRecorder
	Retry       retry.Policy
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	policy := deps.Retry
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		categories: deps.Categories,
		validator:  deps.Validator,
		engine:     engine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		retry:      policy,
		logger:     logger,
		now:        clock,
	}
}

// Create validates draft and stores a new OPEN issue reported by actor.
func (s *IssueService) Create(ctx context.Context, actor domain.Principal, draft validation.Draft) (*IssueView, error) {
	validated, err := s.validator.Validate(ctx, draft, actor.Role)
	if err != nil {
		return nil, err
	}
	issue, evts := s.engine.Create(validated, actor)
	if err := s.issues.Create(ctx, &issue); err != nil {
		return nil, err
	}
	s.logger.Info("issue created",
		zap.String("issue_id", string(issue.ID)),
		zap.String("category_id", string(issue.CategoryID)),
		zap.String("priority", string(issue.Priority)),
		zap.Time("due_at", issue.DueAt))
	s.publish(ctx, evts)
	owner := validated.DepartmentID
	return s.view(issue, actor, &owner), nil
}

// Get returns the issue with its thread and the history the requester may see.
func (s *IssueService) Get(ctx context.Context, actor domain.Principal, id domain.IssueID) (*IssueDetail, error) {
	issue, owner, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	comments, err := retry.WithBackoff(ctx, s.retry, func() ([]domain.Comment, error) {
		return s.comments.ListByIssue(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	issue.Comments = comments
	history, err := s.redactedHistory(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &IssueDetail{IssueView: *s.view(issue, actor, owner), History: history}, nil
}

// List returns the issues visible to actor that match filter.
func (s *IssueService) List(ctx context.Context, actor domain.Principal, filter IssueListFilter) ([]IssueView, error) {
	repoFilter := repository.IssueFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CategoryID:  filter.CategoryID,
		AssigneeID:  filter.AssigneeID,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if filter.OverdueOnly {
		now := s.now()
		repoFilter.OverdueAt = &now
	}
	if err := applyScope(&repoFilter, actor); err != nil {
		return nil, err
	}

	found, err := retry.WithBackoff(ctx, s.retry, func() ([]domain.Issue, error) {
		return s.issues.Query(ctx, repoFilter)
	})
	if err != nil {
		return nil, err
	}
	index, err := s.categories.Index(ctx)
	if err != nil {
		return nil, err
	}

	visible := visibility.VisibleIssues(found, actor, index)
	views := make([]IssueView, 0, len(visible))
	for _, issue := range visible {
		views = append(views, *s.view(issue, actor, ownerFromIndex(index, issue.CategoryID)))
	}
	return views, nil
}

// Transition moves the issue to target.
func (s *IssueService) Transition(ctx context.Context, actor domain.Principal, id domain.IssueID, target domain.Status) (*IssueView, error) {
	return s.mutate(ctx, actor, id, func(issue domain.Issue) (domain.Issue, []events.Event, error) {
		return s.engine.Transition(issue, target, actor)
	})
}

// Reopen moves a RESOLVED or CLOSED issue to REOPENED.
func (s *IssueService) Reopen(ctx context.Context, actor domain.Principal, id domain.IssueID) (*IssueView, error) {
	return s.mutate(ctx, actor, id, func(issue domain.Issue) (domain.Issue, []events.Event, error) {
		return s.engine.Reopen(issue, actor)
	})
}

// Assign sets the assignee; nil un-assigns.
func (s *IssueService) Assign(ctx context.Context, actor domain.Principal, id domain.IssueID, assigneeID *domain.UserID) (*IssueView, error) {
	if !visibility.CanAssign(actor) {
		return nil, apperrors.NewForbidden("insufficient role for assignment")
	}
	return s.mutate(ctx, actor, id, func(issue domain.Issue) (domain.Issue, []events.Event, error) {
		var assignee *domain.User
		if assigneeID != nil {
			user, err := retry.WithBackoff(ctx, s.retry, func() (*domain.User, error) {
				return s.users.GetByID(ctx, *assigneeID)
			})
			if err != nil {
				return issue, nil, err
			}
			assignee = user
		}
		return s.engine.Assign(issue, assignee, actor)
	})
}

// SetPriority overrides the issue priority.
func (s *IssueService) SetPriority(ctx context.Context, actor domain.Principal, id domain.IssueID, priority domain.Priority) (*IssueView, error) {
	return s.mutate(ctx, actor, id, func(issue domain.Issue) (domain.Issue, []events.Event, error) {
		return s.engine.SetPriority(issue, priority, actor)
	})
}

// ChangeCategory recategorizes the issue and recomputes due_at.
func (s *IssueService) ChangeCategory(ctx context.Context, actor domain.Principal, id domain.IssueID, categoryID domain.CategoryID) (*IssueView, error) {
	if !visibility.CanChangeCategory(actor) {
		return nil, apperrors.NewForbidden("insufficient role for category change")
	}
	return s.mutate(ctx, actor, id, func(issue domain.Issue) (domain.Issue, []events.Event, error) {
		category, err := s.categories.Get(ctx, categoryID)
		if err != nil {
			return issue, nil, err
		}
		return s.engine.ChangeCategory(issue, *category, actor)
	})
}

// AddComment appends a comment to the thread.
func (s *IssueService) AddComment(ctx context.Context, actor domain.Principal, id domain.IssueID, body string) (*domain.Comment, error) {
	issue, _, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	updated, comment, evts, err := s.engine.AddComment(issue, actor, body)
	if err != nil {
		return nil, err
	}
	if err := s.comments.Append(ctx, &comment); err != nil {
		return nil, err
	}
	if err := s.issues.Touch(ctx, id, updated.UpdatedAt); err != nil {
		s.logger.Warn("comment stored but issue timestamp not updated",
			zap.String("issue_id", string(id)), zap.Error(err))
	}
	s.publish(ctx, evts)
	return &comment, nil
}

// History returns the audit trail redacted for actor.
func (s *IssueService) History(ctx context.Context, actor domain.Principal, id domain.IssueID) ([]domain.IssueHistory, error) {
	if _, _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.redactedHistory(ctx, actor, id)
}

func (s *IssueService) redactedHistory(ctx context.Context, actor domain.Principal, id domain.IssueID) ([]domain.IssueHistory, error) {
	entries, err := retry.WithBackoff(ctx, s.retry, func() ([]domain.IssueHistory, error) {
		return s.history.ListByIssue(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return visibility.RedactHistory(entries, actor), nil
}

// CountOverdue pages through every unsettled issue past its due date.
func (s *IssueService) CountOverdue(ctx context.Context) (int, error) {
	const page = 500
	now := s.now()
	total := 0
	for offset := 0; ; offset += page {
		filter := repository.IssueFilter{OverdueAt: &now, Limit: page, Offset: offset}
		found, err := retry.WithBackoff(ctx, s.retry, func() ([]domain.Issue, error) {
			return s.issues.Query(ctx, filter)
		})
		if err != nil {
			return 0, err
		}
		total += len(found)
		if len(found) < page {
			return total, nil
		}
	}
}

// Delete removes an issue. Administrative override outside the lifecycle.
func (s *IssueService) Delete(ctx context.Context, actor domain.Principal, id domain.IssueID) error {
	if !visibility.CanDelete(actor) {
		return apperrors.NewForbidden("admin role required")
	}
	if err := s.issues.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Warn("issue deleted by admin",
		zap.String("issue_id", string(id)),
		zap.String("actor_id", string(actor.UserID)))
	return nil
}

type engineOp func(domain.Issue) (domain.Issue, []events.Event, error)

// mutate is the single write path: load, authorize, apply, persist, record, publish.
func (s *IssueService) mutate(ctx context.Context, actor domain.Principal, id domain.IssueID, op engineOp) (*IssueView, error) {
	issue, owner, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	updated, evts, err := op(issue)
	if err != nil {
		return nil, err
	}
	if len(evts) == 0 {
		return s.view(issue, actor, owner), nil
	}
	if err := s.issues.Update(ctx, &updated); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, issue, updated, actor)
	s.publish(ctx, evts)
	if updated.CategoryID != issue.CategoryID {
		if category, err := s.categories.Get(ctx, updated.CategoryID); err == nil {
			dept := category.DepartmentID
			owner = &dept
		}
	}
	return s.view(updated, actor, owner), nil
}

func (s *IssueService) loadVisible(ctx context.Context, actor domain.Principal, id domain.IssueID) (domain.Issue, *domain.DepartmentID, error) {
	if !actor.Role.Valid() {
		return domain.Issue{}, nil, apperrors.NewForbidden("unknown role")
	}
	issue, err := retry.WithBackoff(ctx, s.retry, func() (*domain.Issue, error) {
		return s.issues.Get(ctx, id)
	})
	if err != nil {
		return domain.Issue{}, nil, err
	}
	owner, err := s.ownerOf(ctx, issue.CategoryID)
	if err != nil {
		return domain.Issue{}, nil, err
	}
	if !visibility.CanView(*issue, actor, owner) {
		return domain.Issue{}, nil, apperrors.NewForbidden("issue not visible to requester")
	}
	return *issue, owner, nil
}

func (s *IssueService) ownerOf(ctx context.Context, id domain.CategoryID) (*domain.DepartmentID, error) {
	category, err := s.categories.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dept := category.DepartmentID
	return &dept, nil
}

func (s *IssueService) recordHistory(ctx context.Context, before, after domain.Issue, actor domain.Principal) {
	now := after.UpdatedAt
	actorID := domain.UserIDPtr(actor.UserID)
	var entries []domain.IssueHistory
	add := func(changeType domain.ChangeType, oldValue, newValue map[string]any) {
		entries = append(entries, domain.IssueHistory{
			ID:         uuid.NewString(),
			IssueID:    after.ID,
			ActorID:    actorID,
			ChangeType: changeType,
			OldValue:   oldValue,
			NewValue:   newValue,
			CreatedAt:  now,
		})
	}

	if before.Status != after.Status {
		add(domain.ChangeTypeStatus,
			map[string]any{"status": string(before.Status)},
			map[string]any{"status": string(after.Status)})
		if s.metrics != nil {
			s.metrics.RecordTransition(ctx, before.Status, after.Status)
		}
	}
	if !domain.SameUser(before.AssigneeID, after.AssigneeID) {
		add(domain.ChangeTypeAssignee,
			map[string]any{"assignee_id": userValue(before.AssigneeID)},
			map[string]any{"assignee_id": userValue(after.AssigneeID)})
	}
	if before.Priority != after.Priority {
		add(domain.ChangeTypePriority,
			map[string]any{"priority": string(before.Priority)},
			map[string]any{"priority": string(after.Priority)})
	}
	if before.CategoryID != after.CategoryID {
		add(domain.ChangeTypeCategory,
			map[string]any{"category_id": string(before.CategoryID), "due_at": before.DueAt.Format(time.RFC3339)},
			map[string]any{"category_id": string(after.CategoryID), "due_at": after.DueAt.Format(time.RFC3339)})
	}

	for i := range entries {
		if err := s.history.Create(ctx, &entries[i]); err != nil {
			s.logger.Error("failed to record issue history",
				zap.String("issue_id", string(after.ID)),
				zap.String("change_type", string(entries[i].ChangeType)),
				zap.Error(err))
		}
	}
}

// publish never fails the request: the write has already committed.
func (s *IssueService) publish(ctx context.Context, evts []events.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, event := range evts {
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("issue_id", string(event.IssueID)),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func (s *IssueService) view(issue domain.Issue, actor domain.Principal, owner *domain.DepartmentID) *IssueView {
	return &IssueView{
		Issue:   visibility.Redact(issue, actor),
		Overdue: issue.Overdue(s.now()),
		Actions: visibility.ActionsFor(issue, actor, owner),
	}
}

func applyScope(filter *repository.IssueFilter, actor domain.Principal) error {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleLecturer:
		filter.Lecturer = &repository.LecturerScope{UserID: actor.UserID, DepartmentID: actor.DepartmentID}
	case domain.RoleStudent:
		reporter := actor.UserID
		filter.ReporterID = &reporter
	default:
		return apperrors.NewForbidden("unknown role")
	}
	return nil
}

func ownerFromIndex(index map[domain.CategoryID]domain.Category, id domain.CategoryID) *domain.DepartmentID {
	category, ok := index[id]
	if !ok {
		return nil
	}
	dept := category.DepartmentID
	return &dept
}

func userValue(id *domain.UserID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}
