package worker

import (
	"context"
	"sync"

	"github.com/spec-kit/issue-service/internal/service"
)

// Set is the background work started alongside the HTTP server.
type Set struct {
	Notifications *service.NotificationService
	Overdue       *OverdueMonitor
}

// Start subscribes the notification handlers and launches periodic jobs.
// The returned channel is closed once every job has stopped after ctx ends.
func (s Set) Start(ctx context.Context) <-chan struct{} {
	if s.Notifications != nil {
		s.Notifications.RegisterHandlers()
	}

	var wg sync.WaitGroup
	if s.Overdue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Overdue.Run(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
