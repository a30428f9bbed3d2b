package workflow

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/spec-kit/issue-service/internal/domain"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

func genStatus() gopter.Gen {
	return gen.OneConstOf(
		domain.StatusOpen,
		domain.StatusInProgress,
		domain.StatusResolved,
		domain.StatusClosed,
		domain.StatusReopened,
	)
}

func genPriority() gopter.Gen {
	return gen.OneConstOf(domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical)
}

func TestWorkflowProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("due date is creation time plus category window", prop.ForAll(
		func(offsetMinutes int64, windowHours int) bool {
			created := t0.Add(time.Duration(offsetMinutes) * time.Minute)
			engine := NewEngine(WithClock(func() time.Time { return created }))
			v := techSupportDraft()
			v.ResponseWindow = time.Duration(windowHours) * time.Hour

			issue, _ := engine.Create(v, student)
			return issue.CreatedAt.Equal(created) && issue.DueAt.Equal(created.Add(v.ResponseWindow))
		},
		gen.Int64Range(0, 60*24*365),
		gen.IntRange(1, 24*30),
	))

	properties.Property("created issue keeps validated priority", prop.ForAll(
		func(p domain.Priority) bool {
			engine := NewEngine(WithClock(func() time.Time { return t0 }))
			v := techSupportDraft()
			v.Priority = p
			issue, _ := engine.Create(v, student)
			return issue.Priority == p && issue.Status == domain.StatusOpen
		},
		genPriority(),
	))

	properties.Property("transitions succeed exactly for table pairs", prop.ForAll(
		func(from, to domain.Status) bool {
			engine := NewEngine(WithClock(func() time.Time { return t0 }))
			issue := domain.Issue{ID: "i", Status: from, ReporterID: "s-1"}

			next, evts, err := engine.Transition(issue, to, admin)
			if domain.CanTransition(from, to) {
				return err == nil && next.Status == to && len(evts) == 1
			}
			return isInvalidTransition(err) && next.Status == from && len(evts) == 0
		},
		genStatus(),
		genStatus(),
	))

	properties.Property("resolved_at is set on RESOLVED and cleared on REOPENED", prop.ForAll(
		func(from, to domain.Status, hadResolved bool) bool {
			if !domain.CanTransition(from, to) {
				return true
			}
			engine := NewEngine(WithClock(func() time.Time { return t0.Add(time.Hour) }))
			issue := domain.Issue{ID: "i", Status: from}
			if hadResolved {
				earlier := t0
				issue.ResolvedAt = &earlier
			}

			next, _, err := engine.Transition(issue, to, lecturer)
			if err != nil {
				return false
			}
			switch to {
			case domain.StatusResolved:
				if hadResolved {
					return next.ResolvedAt != nil && next.ResolvedAt.Equal(t0)
				}
				return next.ResolvedAt != nil && next.ResolvedAt.Equal(t0.Add(time.Hour))
			case domain.StatusReopened:
				return next.ResolvedAt == nil
			default:
				return (next.ResolvedAt == nil) == !hadResolved
			}
		},
		genStatus(),
		genStatus(),
		gen.Bool(),
	))

	properties.Property("status and priority changes never move the due date", prop.ForAll(
		func(windowHours int, steps []int) bool {
			now := t0
			engine := NewEngine(WithClock(func() time.Time { return now }))
			v := techSupportDraft()
			v.ResponseWindow = time.Duration(windowHours) * time.Hour
			issue, _ := engine.Create(v, student)
			want := issue.CreatedAt.Add(v.ResponseWindow)

			statuses := []domain.Status{domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed, domain.StatusReopened}
			priorities := []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical}
			for _, step := range steps {
				now = now.Add(37 * time.Minute)
				var (
					next domain.Issue
					err  error
				)
				if step < len(statuses) {
					next, _, err = engine.Transition(issue, statuses[step], admin)
				} else {
					next, _, err = engine.SetPriority(issue, priorities[step-len(statuses)], lecturer)
				}
				if err == nil {
					issue = next
				}
				if !issue.DueAt.Equal(want) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 24*30),
		gen.SliceOf(gen.IntRange(0, 8)),
	))

	properties.Property("assignment never changes status", prop.ForAll(
		func(status domain.Status) bool {
			if status == domain.StatusClosed {
				return true
			}
			engine := NewEngine(WithClock(func() time.Time { return t0 }))
			issue := domain.Issue{ID: "i", Status: status}
			next, _, err := engine.Assign(issue, &domain.User{ID: "l-1", Role: domain.RoleLecturer, Active: true}, admin)
			return err == nil && next.Status == status
		},
		genStatus(),
	))

	properties.TestingRun(t)
}

func isInvalidTransition(err error) bool {
	de := apperrors.ToDomainError(err)
	return de != nil && de.Code == apperrors.CodeInvalidTransition
}
