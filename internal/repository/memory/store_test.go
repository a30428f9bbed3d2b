package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	for _, dept := range []domain.Department{{ID: "cs", Name: "Computer Science", IsActive: true}, {ID: "math", Name: "Mathematics", IsActive: true}} {
		d := dept
		require.NoError(t, store.Departments().Upsert(ctx, &d))
	}
	for _, category := range []domain.Category{
		{ID: "cat-cs", Name: "Lab access", DepartmentID: "cs", DefaultPriority: domain.PriorityMedium, ResponseWindow: time.Hour, Active: true},
		{ID: "cat-math", Name: "Grading", DepartmentID: "math", DefaultPriority: domain.PriorityLow, ResponseWindow: time.Hour, Active: true},
	} {
		c := category
		require.NoError(t, store.Categories().Create(ctx, &c))
	}
	return store
}

func TestIssues_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	issue := domain.Issue{ID: "i-1", CategoryID: "cat-cs", ReporterID: "s-1", Status: domain.StatusOpen,
		Comments: []domain.Comment{{ID: "c"}}}

	require.NoError(t, store.Issues().Create(ctx, &issue))
	got, err := store.Issues().Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("s-1"), got.ReporterID)
	assert.Empty(t, got.Comments, "comments are stored separately")

	got.Title = "mutated"
	again, _ := store.Issues().Get(ctx, "i-1")
	assert.Empty(t, again.Title)

	require.NoError(t, store.Issues().Delete(ctx, "i-1"))
	_, err = store.Issues().Get(ctx, "i-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, store.Issues().Delete(ctx, "i-1"), apperrors.ErrNotFound)
}

func TestIssues_CreateUnknownCategory(t *testing.T) {
	store := seeded(t)
	err := store.Issues().Create(context.Background(), &domain.Issue{ID: "i-1", CategoryID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIssues_QueryScopes(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, issue := range []domain.Issue{
		{ID: "a", CategoryID: "cat-cs", ReporterID: "s-1", Status: domain.StatusOpen, Title: "Wifi"},
		{ID: "b", CategoryID: "cat-math", ReporterID: "s-1", Status: domain.StatusResolved, AssigneeID: domain.UserIDPtr("l-1")},
		{ID: "c", CategoryID: "cat-math", ReporterID: "s-2", Status: domain.StatusOpen},
	} {
		issue.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		issue.DueAt = base.Add(time.Hour)
		require.NoError(t, store.Issues().Create(ctx, &issue))
	}

	reporter := domain.UserID("s-1")
	got, err := store.Issues().Query(ctx, repository.IssueFilter{ReporterID: &reporter})
	require.NoError(t, err)
	assert.Equal(t, []domain.IssueID{"b", "a"}, issueIDs(got), "newest first")

	cs := domain.DepartmentID("cs")
	got, err = store.Issues().Query(ctx, repository.IssueFilter{Lecturer: &repository.LecturerScope{UserID: "l-1", DepartmentID: &cs}})
	require.NoError(t, err)
	assert.Equal(t, []domain.IssueID{"b", "a"}, issueIDs(got))

	got, err = store.Issues().Query(ctx, repository.IssueFilter{SearchTerm: "wifi"})
	require.NoError(t, err)
	assert.Equal(t, []domain.IssueID{"a"}, issueIDs(got))

	now := base.Add(2 * time.Hour)
	got, err = store.Issues().Query(ctx, repository.IssueFilter{OverdueAt: &now})
	require.NoError(t, err)
	assert.Equal(t, []domain.IssueID{"c", "a"}, issueIDs(got))

	got, err = store.Issues().Query(ctx, repository.IssueFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []domain.IssueID{"b"}, issueIDs(got))
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)

	err := store.Categories().Create(ctx, &domain.Category{ID: "cat-cs", DepartmentID: "cs"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = store.Categories().Create(ctx, &domain.Category{ID: "cat-x", DepartmentID: "ghost"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	category, err := store.Categories().GetByID(ctx, "cat-cs")
	require.NoError(t, err)
	category.Active = false
	require.NoError(t, store.Categories().Update(ctx, category))

	active, err := store.Categories().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := store.Categories().List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUsers_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cs := domain.DepartmentID("cs")
	for _, user := range []domain.User{
		{ID: "l-1", Name: "Ada", Role: domain.RoleLecturer, DepartmentID: &cs, Active: true, Email: "ada@uni.edu"},
		{ID: "l-2", Name: "Bob", Role: domain.RoleLecturer, Active: false},
		{ID: "s-1", Name: "Cy", Role: domain.RoleStudent, Active: true},
	} {
		u := user
		require.NoError(t, store.Users().Upsert(ctx, &u))
	}

	role := domain.RoleLecturer
	active := true
	got, err := store.Users().List(ctx, repository.UserFilter{Role: &role, Active: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.UserID("l-1"), got[0].ID)

	byEmail, err := store.Users().GetByEmail(ctx, "ADA@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("l-1"), byEmail.ID)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	store.FailNext(1, errors.New("connection reset"))

	_, err := store.Categories().GetByID(ctx, "cat-cs")
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	_, err = store.Categories().GetByID(ctx, "cat-cs")
	assert.NoError(t, err)
}

func issueIDs(issues []domain.Issue) []domain.IssueID {
	out := make([]domain.IssueID, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.ID)
	}
	return out
}

func TestIssues_UpdateAndTouchRequireExistingRow(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	issue := domain.Issue{ID: "i-1", CategoryID: "cat-cs", ReporterID: "s-1", Status: domain.StatusOpen}

	assert.ErrorIs(t, store.Issues().Update(ctx, &issue), apperrors.ErrNotFound)
	assert.ErrorIs(t, store.Issues().Touch(ctx, "i-1", time.Now()), apperrors.ErrNotFound)

	require.NoError(t, store.Issues().Create(ctx, &issue))
	assert.ErrorIs(t, store.Issues().Create(ctx, &issue), apperrors.ErrValidation)

	issue.Status = domain.StatusResolved
	require.NoError(t, store.Issues().Update(ctx, &issue))

	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Issues().Touch(ctx, "i-1", at))
	got, err := store.Issues().Get(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status, "touch keeps other columns")
	assert.Equal(t, at, got.UpdatedAt)

	require.NoError(t, store.Issues().Delete(ctx, "i-1"))
	assert.ErrorIs(t, store.Issues().Update(ctx, &issue), apperrors.ErrNotFound)
}
