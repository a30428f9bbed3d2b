// Package memory provides map-backed repositories used by tests and by the
// server when no Postgres DSN is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// Store holds every table behind one lock so multi-row reads are consistent.
type Store struct {
	mu          sync.RWMutex
	issues      map[domain.IssueID]domain.Issue
	comments    map[domain.IssueID][]domain.Comment
	history     map[domain.IssueID][]domain.IssueHistory
	categories  map[domain.CategoryID]domain.Category
	departments map[domain.DepartmentID]domain.Department
	users       map[domain.UserID]domain.User

	failures int
	failErr  error
	now      func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		issues:      map[domain.IssueID]domain.Issue{},
		comments:    map[domain.IssueID][]domain.Comment{},
		history:     map[domain.IssueID][]domain.IssueHistory{},
		categories:  map[domain.CategoryID]domain.Category{},
		departments: map[domain.DepartmentID]domain.Department{},
		users:       map[domain.UserID]domain.User{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// FailNext makes the next n operations fail with err wrapped as StoreUnavailable.
func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.failErr = err
}

// Issues exposes the issue table.
func (s *Store) Issues() repository.IssueRepository { return issueTable{s} }

// Comments exposes the comment table.
func (s *Store) Comments() repository.CommentRepository { return commentTable{s} }

// History exposes the audit table.
func (s *Store) History() repository.HistoryRepository { return historyTable{s} }

// Categories exposes the category table.
func (s *Store) Categories() repository.CategoryRepository { return categoryTable{s} }

// Departments exposes the department table.
func (s *Store) Departments() repository.DepartmentRepository { return departmentTable{s} }

// Users exposes the user directory.
func (s *Store) Users() repository.UserRepository { return userTable{s} }

// check must be called with mu held.
func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	if s.failures > 0 {
		s.failures--
		return apperrors.NewStoreUnavailable(s.failErr)
	}
	return nil
}

type issueTable struct{ s *Store }

func (t issueTable) Get(ctx context.Context, id domain.IssueID) (*domain.Issue, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	issue, ok := t.s.issues[id]
	if !ok {
		return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": id})
	}
	out := issue.Clone()
	out.Comments = nil
	return &out, nil
}

func (t issueTable) Create(ctx context.Context, issue *domain.Issue) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	if _, ok := t.s.issues[issue.ID]; ok {
		return apperrors.NewValidationError("issue already exists",
			apperrors.FieldError{Field: "id", Message: "must be unique"})
	}
	return t.store(issue)
}

func (t issueTable) Update(ctx context.Context, issue *domain.Issue) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	if _, ok := t.s.issues[issue.ID]; !ok {
		return apperrors.NewNotFound("issue", map[string]any{"issue_id": issue.ID})
	}
	return t.store(issue)
}

func (t issueTable) Touch(ctx context.Context, id domain.IssueID, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	stored, ok := t.s.issues[id]
	if !ok {
		return apperrors.NewNotFound("issue", map[string]any{"issue_id": id})
	}
	stored.UpdatedAt = at
	t.s.issues[id] = stored
	return nil
}

// store requires the caller to hold the lock.
func (t issueTable) store(issue *domain.Issue) error {
	if _, ok := t.s.categories[issue.CategoryID]; !ok {
		return apperrors.NewNotFound("referenced record", map[string]any{"category_id": issue.CategoryID})
	}
	stored := issue.Clone()
	stored.Comments = nil
	t.s.issues[issue.ID] = stored
	return nil
}

func (t issueTable) Delete(ctx context.Context, id domain.IssueID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	if _, ok := t.s.issues[id]; !ok {
		return apperrors.NewNotFound("issue", map[string]any{"issue_id": id})
	}
	delete(t.s.issues, id)
	delete(t.s.comments, id)
	delete(t.s.history, id)
	return nil
}

func (t issueTable) Query(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}

	matched := []domain.Issue{}
	for _, issue := range t.s.issues {
		if t.matches(issue, filter) {
			out := issue.Clone()
			matched = append(matched, out)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Issue{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (t issueTable) matches(issue domain.Issue, f repository.IssueFilter) bool {
	if f.ReporterID != nil && issue.ReporterID != *f.ReporterID {
		return false
	}
	if f.Lecturer != nil {
		assigned := issue.AssigneeID != nil && *issue.AssigneeID == f.Lecturer.UserID
		inDept := false
		if f.Lecturer.DepartmentID != nil {
			category, ok := t.s.categories[issue.CategoryID]
			inDept = ok && category.DepartmentID == *f.Lecturer.DepartmentID
		}
		if !assigned && !inDept {
			return false
		}
	}
	if f.AssigneeID != nil && !domain.SameUser(issue.AssigneeID, f.AssigneeID) {
		return false
	}
	if f.CategoryID != nil && issue.CategoryID != *f.CategoryID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, issue.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, issue.Priority) {
		return false
	}
	if f.CreatedFrom != nil && issue.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && issue.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.OverdueAt != nil && !issue.Overdue(*f.OverdueAt) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.SearchTerm)); term != "" {
		if !strings.Contains(strings.ToLower(issue.Title), term) &&
			!strings.Contains(strings.ToLower(issue.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.Priority, p domain.Priority) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}

type commentTable struct{ s *Store }

func (t commentTable) Append(ctx context.Context, comment *domain.Comment) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	if _, ok := t.s.issues[comment.IssueID]; !ok {
		return apperrors.NewNotFound("issue", map[string]any{"issue_id": comment.IssueID})
	}
	t.s.comments[comment.IssueID] = append(t.s.comments[comment.IssueID], *comment)
	return nil
}

func (t commentTable) ListByIssue(ctx context.Context, issueID domain.IssueID) ([]domain.Comment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	return append([]domain.Comment{}, t.s.comments[issueID]...), nil
}

type historyTable struct{ s *Store }

func (t historyTable) Create(ctx context.Context, entry *domain.IssueHistory) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	t.s.history[entry.IssueID] = append(t.s.history[entry.IssueID], *entry)
	return nil
}

func (t historyTable) ListByIssue(ctx context.Context, issueID domain.IssueID) ([]domain.IssueHistory, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	return append([]domain.IssueHistory{}, t.s.history[issueID]...), nil
}

type categoryTable struct{ s *Store }

func (t categoryTable) Create(ctx context.Context, category *domain.Category) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	if _, exists := t.s.categories[category.ID]; exists {
		return apperrors.NewValidationError("category already exists",
			apperrors.FieldError{Field: "id", Message: "must be unique"})
	}
	if _, ok := t.s.departments[category.DepartmentID]; !ok {
		return apperrors.NewNotFound("referenced record", map[string]any{"department_id": category.DepartmentID})
	}
	now := t.s.now()
	category.CreatedAt, category.UpdatedAt = now, now
	t.s.categories[category.ID] = *category
	return nil
}

func (t categoryTable) Update(ctx context.Context, category *domain.Category) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	existing, ok := t.s.categories[category.ID]
	if !ok {
		return apperrors.NewNotFound("category", map[string]any{"category_id": category.ID})
	}
	if _, ok := t.s.departments[category.DepartmentID]; !ok {
		return apperrors.NewNotFound("referenced record", map[string]any{"department_id": category.DepartmentID})
	}
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = t.s.now()
	t.s.categories[category.ID] = *category
	return nil
}

func (t categoryTable) GetByID(ctx context.Context, id domain.CategoryID) (*domain.Category, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	category, ok := t.s.categories[id]
	if !ok {
		return nil, apperrors.NewNotFound("category", map[string]any{"category_id": id})
	}
	return &category, nil
}

func (t categoryTable) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	result := []domain.Category{}
	for _, category := range t.s.categories {
		if category.Active || includeInactive {
			result = append(result, category)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type departmentTable struct{ s *Store }

func (t departmentTable) Upsert(ctx context.Context, dept *domain.Department) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	now := t.s.now()
	if existing, ok := t.s.departments[dept.ID]; ok {
		dept.CreatedAt = existing.CreatedAt
	} else {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now
	t.s.departments[dept.ID] = *dept
	return nil
}

func (t departmentTable) GetByID(ctx context.Context, id domain.DepartmentID) (*domain.Department, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	dept, ok := t.s.departments[id]
	if !ok {
		return nil, apperrors.NewNotFound("department", map[string]any{"department_id": id})
	}
	return &dept, nil
}

func (t departmentTable) ListActive(ctx context.Context) ([]domain.Department, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	result := []domain.Department{}
	for _, dept := range t.s.departments {
		if dept.IsActive {
			result = append(result, dept)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type userTable struct{ s *Store }

func (t userTable) Upsert(ctx context.Context, user *domain.User) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return err
	}
	now := t.s.now()
	if existing, ok := t.s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	t.s.users[user.ID] = *user
	return nil
}

func (t userTable) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	user, ok := t.s.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	return &user, nil
}

func (t userTable) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	for _, user := range t.s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
}

func (t userTable) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.check(ctx); err != nil {
		return nil, err
	}
	result := []domain.User{}
	for _, user := range t.s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.DepartmentID != nil && (user.DepartmentID == nil || *user.DepartmentID != *filter.DepartmentID) {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.User{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}
