package service

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

// commentsWithHook runs hook once before the first Append reaches the store.
type commentsWithHook struct {
	repository.CommentRepository
	hook func()
}

func (c *commentsWithHook) Append(ctx context.Context, comment *domain.Comment) error {
	if hook := c.hook; hook != nil {
		c.hook = nil
		hook()
	}
	return c.CommentRepository.Append(ctx, comment)
}

// usersWithHook runs hook once before the first GetByID reaches the store.
type usersWithHook struct {
	repository.UserRepository
	hook func()
}

func (u *usersWithHook) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if hook := u.hook; hook != nil {
		u.hook = nil
		hook()
	}
	return u.UserRepository.GetByID(ctx, id)
}

func TestIssueService_CommentKeepsConcurrentTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createTechIssue(t)

	f.now = t0.Add(time.Hour)
	f.issues.comments = &commentsWithHook{
		CommentRepository: f.store.Comments(),
		hook: func() {
			_, err := f.issues.Transition(ctx, admin, issue.ID, domain.StatusResolved)
			require.NoError(t, err)
		},
	}

	_, err := f.issues.AddComment(ctx, student, issue.ID, "any update?")
	require.NoError(t, err)

	stored, err := f.store.Issues().Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, stored.Status)
	require.NotNil(t, stored.ResolvedAt)
	assert.Equal(t, f.now, *stored.ResolvedAt)
	assert.Equal(t, f.now, stored.UpdatedAt)
}

func TestIssueService_MutationDoesNotResurrectDeletedIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createTechIssue(t)

	f.issues.users = &usersWithHook{
		UserRepository: f.store.Users(),
		hook: func() {
			require.NoError(t, f.issues.Delete(ctx, admin, issue.ID))
		},
	}

	lecturerID := domain.UserID("l-it")
	_, err := f.issues.Assign(ctx, admin, issue.ID, &lecturerID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = f.store.Issues().Get(ctx, issue.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, f.historyTypes(t, issue.ID))
}
