package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Send(ctx context.Context, key string, message any) error {
	args := m.Called(ctx, key, message)
	return args.Error(0)
}

func statusEvent() events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      events.EventIssueStatusChanged,
		IssueID:   "issue-1",
		Actor:     events.Actor{UserID: "l-cs", Role: domain.RoleLecturer},
		Timestamp: t0,
		Payload:   events.IssueStatusChangedPayload{OldStatus: domain.StatusOpen, NewStatus: domain.StatusInProgress},
	}
}

func TestNotificationService_ForwardsKeyedByIssue(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &mockPublisher{}
	publisher.On("Send", mock.Anything, "issue-1", mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.EventIssueStatusChanged
	})).Return(nil).Once()

	NewNotificationService(dispatcher, publisher, nil).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), statusEvent()))
	publisher.AssertExpectations(t)
}

func TestNotificationService_ReportsPublisherFailure(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &mockPublisher{}
	publisher.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	NewNotificationService(dispatcher, publisher, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), statusEvent())
	assert.ErrorContains(t, err, "broker down")
}

func TestNotificationService_WithoutPublisherOnlyLogs(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, nil, nil).RegisterHandlers()
	assert.NoError(t, dispatcher.Publish(context.Background(), statusEvent()))
}

func TestNotificationService_EndToEndFromIssueService(t *testing.T) {
	f := newFixture(t)
	issue := f.createTechIssue(t)

	f.now = t0.Add(time.Minute)
	_, err := f.issues.SetPriority(context.Background(), admin, issue.ID, domain.PriorityCritical)
	require.NoError(t, err)

	last := f.published[len(f.published)-1]
	assert.Equal(t, events.EventIssuePriorityChanged, last.Type)
	assert.Equal(t, issue.ID, last.IssueID)
	assert.Equal(t, events.IssuePriorityChangedPayload{
		OldPriority: domain.PriorityMedium,
		NewPriority: domain.PriorityCritical,
	}, last.Payload)
}
