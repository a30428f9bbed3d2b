package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/repository/memory"
	"github.com/spec-kit/issue-service/internal/storage"
	"github.com/spec-kit/issue-service/internal/validation"
	"github.com/spec-kit/issue-service/internal/workflow"
	"github.com/spec-kit/issue-service/pkg/util/retry"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

var (
	deptIT = domain.DepartmentID("it")
	deptCS = domain.DepartmentID("cs")

	student      = domain.Principal{UserID: "s-1", Role: domain.RoleStudent}
	otherStudent = domain.Principal{UserID: "s-2", Role: domain.RoleStudent}
	csLecturer   = domain.Principal{UserID: "l-cs", Role: domain.RoleLecturer, DepartmentID: &deptCS}
	itLecturer   = domain.Principal{UserID: "l-it", Role: domain.RoleLecturer, DepartmentID: &deptIT}
	admin        = domain.Principal{UserID: "a-1", Role: domain.RoleAdmin}
)

type recordedTransitions struct {
	mu    sync.Mutex
	pairs []string
}

func (r *recordedTransitions) RecordTransition(_ context.Context, from, to domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, fmt.Sprintf("%s->%s", from, to))
}

type fixture struct {
	store      *memory.Store
	categories *CategoryService
	issues     *IssueService
	directory  *DirectoryService
	published  []events.Event
	metrics    *recordedTransitions
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), metrics: &recordedTransitions{}, now: t0}

	policy := retry.Policy{Attempts: 3}
	f.categories = NewCategoryService(CategoryDependencies{
		CategoryRepo:   f.store.Categories(),
		DepartmentRepo: f.store.Departments(),
		Retry:          policy,
	})
	f.directory = NewDirectoryService(DirectoryDependencies{
		DepartmentRepo: f.store.Departments(),
		UserRepo:       f.store.Users(),
		CategoryRepo:   f.store.Categories(),
		Retry:          policy,
	})

	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			f.published = append(f.published, event)
			return nil
		})
	}

	seq := 0
	clock := func() time.Time { return f.now }
	engine := workflow.NewEngine(
		workflow.WithClock(clock),
		workflow.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	f.issues = NewIssueService(IssueDependencies{
		IssueRepo:   f.store.Issues(),
		CommentRepo: f.store.Comments(),
		HistoryRepo: f.store.History(),
		UserRepo:    f.store.Users(),
		Categories:  f.categories,
		Validator:   validation.New(f.categories, storage.DisabledCatalog{}),
		Engine:      engine,
		Dispatcher:  dispatcher,
		Metrics:     f.metrics,
		Retry:       policy,
		Clock:       clock,
	})

	require.NoError(t, f.directory.ImportSeed(ctx, testSeed()))
	return f
}

func (f *fixture) createTechIssue(t *testing.T) domain.Issue {
	t.Helper()
	view, err := f.issues.Create(context.Background(), student, validation.Draft{
		Title:       "Cannot log in to LMS",
		Description: "Password reset link is broken",
		CategoryID:  "tech",
	})
	require.NoError(t, err)
	return view.Issue
}

func (f *fixture) historyTypes(t *testing.T, id domain.IssueID) []domain.ChangeType {
	t.Helper()
	entries, err := f.store.History().ListByIssue(context.Background(), id)
	require.NoError(t, err)
	out := make([]domain.ChangeType, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.ChangeType)
	}
	return out
}
