package domain

import "strings"

// Status enumerates lifecycle states for issues.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
	StatusReopened   Status = "REOPENED"
)

// Statuses lists every status.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusReopened}

var allowedTransitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed, StatusReopened},
	StatusClosed:     {StatusReopened},
	StatusReopened:   {StatusInProgress, StatusResolved, StatusClosed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// ParseStatus normalizes user input such as "in_progress" to a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// CanTransition reports whether current -> next is in the transition table.
func CanTransition(current, next Status) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedTargets returns a copy of the statuses reachable from current.
func AllowedTargets(current Status) []Status {
	return append([]Status(nil), allowedTransitions[current]...)
}

// Settled reports whether the issue no longer counts against its SLA window.
func (s Status) Settled() bool {
	return s == StatusResolved || s == StatusClosed
}
