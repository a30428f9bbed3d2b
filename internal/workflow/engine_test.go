package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/validation"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

var (
	t0       = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	student  = domain.Principal{UserID: "s-1", Role: domain.RoleStudent}
	lecturer = domain.Principal{UserID: "l-1", Role: domain.RoleLecturer}
	admin    = domain.Principal{UserID: "a-1", Role: domain.RoleAdmin}
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine() (*Engine, *fakeClock) {
	clock := &fakeClock{now: t0}
	seq := 0
	return NewEngine(
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	), clock
}

func techSupportDraft() validation.ValidatedIssue {
	return validation.ValidatedIssue{
		Title:          "Projector broken",
		Description:    "Room 101 projector shows no signal",
		CategoryID:     "tech",
		Priority:       domain.PriorityMedium,
		ResponseWindow: 24 * time.Hour,
		DepartmentID:   "it",
	}
}

func TestCreate_StudentTechSupport(t *testing.T) {
	engine, _ := newTestEngine()

	issue, evts := engine.Create(techSupportDraft(), student)

	assert.Equal(t, domain.StatusOpen, issue.Status)
	assert.Equal(t, domain.PriorityMedium, issue.Priority)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), issue.DueAt)
	assert.Equal(t, domain.UserID("s-1"), issue.ReporterID)
	assert.Nil(t, issue.AssigneeID)
	assert.Nil(t, issue.ResolvedAt)
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventIssueCreated, evts[0].Type)
	assert.Equal(t, issue.ID, evts[0].IssueID)
	assert.Equal(t, t0, evts[0].Timestamp)
}

func TestTransition_ResolvedAtLifecycle(t *testing.T) {
	engine, clock := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)

	clock.Advance(time.Hour)
	resolved, evts, err := engine.Transition(issue, domain.StatusResolved, lecturer)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, t0.Add(time.Hour), *resolved.ResolvedAt)
	require.Len(t, evts, 1)
	assert.Equal(t, events.IssueStatusChangedPayload{OldStatus: domain.StatusOpen, NewStatus: domain.StatusResolved}, evts[0].Payload)

	clock.Advance(time.Hour)
	closed, _, err := engine.Transition(resolved, domain.StatusClosed, student)
	require.NoError(t, err)
	assert.Equal(t, resolved.ResolvedAt, closed.ResolvedAt)

	reopened, _, err := engine.Reopen(closed, student)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReopened, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
	assert.NotNil(t, closed.ResolvedAt, "input must not be mutated")
}

func TestTransition_InvalidLeavesIssueUntouched(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)
	issue.Status = domain.StatusClosed

	out, evts, err := engine.Transition(issue, domain.StatusInProgress, admin)

	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Empty(t, evts)
	assert.Equal(t, issue, out)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "CLOSED", de.Details["current"])
	assert.Equal(t, "IN_PROGRESS", de.Details["target"])
}

func TestTransition_SelfTransitionRejected(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)

	_, _, err := engine.Transition(issue, domain.StatusOpen, lecturer)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestTransition_StudentRestricted(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)

	_, _, err := engine.Transition(issue, domain.StatusInProgress, student)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = engine.Transition(issue, domain.StatusInProgress, domain.Principal{UserID: "x", Role: domain.RoleLecturer})
	assert.NoError(t, err)
}

func TestTransition_UnknownStatus(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)

	_, _, err := engine.Transition(issue, domain.Status("ARCHIVED"), admin)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestReopenThenAssignKeepsStatus(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)
	issue, _, err := engine.Transition(issue, domain.StatusClosed, admin)
	require.NoError(t, err)

	issue, _, err = engine.Reopen(issue, admin)
	require.NoError(t, err)

	assignee := &domain.User{ID: "l-1", Role: domain.RoleLecturer, Active: true}
	issue, evts, err := engine.Assign(issue, assignee, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReopened, issue.Status)
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventIssueAssigned, evts[0].Type)

	issue, _, err = engine.Transition(issue, domain.StatusResolved, lecturer)
	require.NoError(t, err)
	assert.NotNil(t, issue.ResolvedAt)
}

func TestAssign(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)
	lect := &domain.User{ID: "l-1", Role: domain.RoleLecturer, Active: true}

	t.Run("StudentForbidden", func(t *testing.T) {
		_, _, err := engine.Assign(issue, lect, student)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("InactiveOrStudentAssigneeRejected", func(t *testing.T) {
		_, _, err := engine.Assign(issue, &domain.User{ID: "l-2", Role: domain.RoleLecturer}, admin)
		require.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, "assignee_id", apperrors.FieldErrors(err)[0].Field)

		_, _, err = engine.Assign(issue, &domain.User{ID: "s-2", Role: domain.RoleStudent, Active: true}, admin)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("SameAssigneeIsNoop", func(t *testing.T) {
		assigned, _, err := engine.Assign(issue, lect, admin)
		require.NoError(t, err)
		again, evts, err := engine.Assign(assigned, lect, admin)
		require.NoError(t, err)
		assert.Empty(t, evts)
		assert.Equal(t, assigned, again)
	})

	t.Run("Unassign", func(t *testing.T) {
		assigned, _, err := engine.Assign(issue, lect, admin)
		require.NoError(t, err)
		cleared, evts, err := engine.Assign(assigned, nil, lecturer)
		require.NoError(t, err)
		assert.Nil(t, cleared.AssigneeID)
		require.Len(t, evts, 1)
		payload := evts[0].Payload.(events.IssueAssignedPayload)
		assert.Equal(t, domain.UserID("l-1"), *payload.OldAssigneeID)
		assert.Nil(t, payload.NewAssigneeID)
	})

	t.Run("ClosedRejected", func(t *testing.T) {
		closed := issue.Clone()
		closed.Status = domain.StatusClosed
		_, _, err := engine.Assign(closed, lect, admin)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

		de := apperrors.ToDomainError(err)
		assert.Equal(t, "CLOSED", de.Details["current"])
		assert.Equal(t, "assign", de.Details["action"])
		assert.NotContains(t, de.Details, "target", "target is reserved for statuses")
	})
}

func TestSetPriority(t *testing.T) {
	engine, clock := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)
	clock.Advance(time.Hour)

	_, _, err := engine.SetPriority(issue, domain.PriorityCritical, student)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = engine.SetPriority(issue, domain.Priority("URGENT"), lecturer)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	raised, evts, err := engine.SetPriority(issue, domain.PriorityCritical, lecturer)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityCritical, raised.Priority)
	assert.Equal(t, issue.DueAt, raised.DueAt)
	assert.Equal(t, t0.Add(time.Hour), raised.UpdatedAt)
	require.Len(t, evts, 1)

	_, evts, err = engine.SetPriority(raised, domain.PriorityCritical, lecturer)
	require.NoError(t, err)
	assert.Empty(t, evts)
}

func TestChangeCategory_RecomputesDueFromCreation(t *testing.T) {
	engine, clock := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)
	clock.Advance(5 * time.Hour)

	exams := domain.Category{ID: "exams", ResponseWindow: 72 * time.Hour, Active: true}
	moved, evts, err := engine.ChangeCategory(issue, exams, admin)

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryID("exams"), moved.CategoryID)
	assert.Equal(t, t0.Add(72*time.Hour), moved.DueAt)
	assert.Equal(t, issue.Priority, moved.Priority)
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventIssueCategoryChanged, evts[0].Type)

	_, _, err = engine.ChangeCategory(issue, domain.Category{ID: "old", ResponseWindow: time.Hour}, admin)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _, err = engine.ChangeCategory(issue, exams, student)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAddComment(t *testing.T) {
	engine, _ := newTestEngine()
	issue, _ := engine.Create(techSupportDraft(), student)

	_, _, _, err := engine.AddComment(issue, student, "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	next, comment, evts, err := engine.AddComment(issue, student, " still broken ")
	require.NoError(t, err)
	assert.Equal(t, "still broken", comment.Body)
	assert.Len(t, next.Comments, 1)
	assert.Empty(t, issue.Comments)
	require.Len(t, evts, 1)
	assert.Equal(t, "still broken", evts[0].Payload.(events.IssueCommentAddedPayload).BodyPreview)

	closed := next.Clone()
	closed.Status = domain.StatusClosed
	_, _, _, err = engine.AddComment(closed, lecturer, "late reply")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestStringPreview(t *testing.T) {
	assert.Equal(t, "short", stringPreview("short", 10))
	assert.Equal(t, "abcdefg...", stringPreview("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", stringPreview("abcdef", 2))
}
