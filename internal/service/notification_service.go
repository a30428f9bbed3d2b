package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/events"
)

// Publisher forwards events to an external broker.
type Publisher interface {
	Send(ctx context.Context, key string, message any) error
}

// NotificationService turns domain events into notifications: every event is
// logged and, when a broker is configured, forwarded keyed by issue id.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	logger     *zap.Logger
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every issue event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("issue_id", string(event.IssueID)),
		zap.String("actor_id", string(event.Actor.UserID)),
		zap.Any("payload", event.Payload))

	if n.publisher == nil {
		return nil
	}
	if err := n.publisher.Send(ctx, string(event.IssueID), event); err != nil {
		n.logger.Warn("failed to forward event",
			zap.String("issue_id", string(event.IssueID)),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
