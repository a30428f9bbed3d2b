// Package visibility decides which issues a requester may read and which
// mutations are available to them. It is the single seam for field redaction.
package visibility

import (
	"github.com/spec-kit/issue-service/internal/domain"
)

// Actions lists what a requester may do with one issue.
type Actions struct {
	View           bool            `json:"view"`
	Comment        bool            `json:"comment"`
	Assign         bool            `json:"assign"`
	SetPriority    bool            `json:"set_priority"`
	ChangeCategory bool            `json:"change_category"`
	Delete         bool            `json:"delete"`
	Transitions    []domain.Status `json:"transitions"`
}

// VisibleIssues returns the subset of all readable by requester, preserving order.
// categories maps category ids to their records so lecturer department scope
// can be evaluated; issues whose category is missing fall back to the
// assignee rule.
func VisibleIssues(all []domain.Issue, requester domain.Principal, categories map[domain.CategoryID]domain.Category) []domain.Issue {
	visible := make([]domain.Issue, 0, len(all))
	for _, issue := range all {
		if CanView(issue, requester, ownerOf(issue, categories)) {
			visible = append(visible, issue)
		}
	}
	return visible
}

// CanView reports whether requester may read issue. owner is the owning
// department of the issue's category, or nil when unknown.
func CanView(issue domain.Issue, requester domain.Principal, owner *domain.DepartmentID) bool {
	switch requester.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleLecturer:
		if issue.AssigneeID != nil && *issue.AssigneeID == requester.UserID {
			return true
		}
		return owner != nil && requester.InDepartment(*owner)
	case domain.RoleStudent:
		return issue.ReporterID == requester.UserID
	}
	return false
}

// CanTransition reports whether the requester's role permits moving issue to
// target. The transition table itself is checked by the workflow engine.
func CanTransition(issue domain.Issue, target domain.Status, requester domain.Principal) bool {
	if requester.Role.IsStaff() {
		return true
	}
	if requester.Role != domain.RoleStudent || issue.ReporterID != requester.UserID {
		return false
	}
	switch issue.Status {
	case domain.StatusResolved:
		return target == domain.StatusClosed || target == domain.StatusReopened
	case domain.StatusClosed:
		return target == domain.StatusReopened
	}
	return false
}

// CanAssign reports whether requester may change assignees.
func CanAssign(requester domain.Principal) bool {
	return requester.Role.IsStaff()
}

// CanSetPriority reports whether requester may override priority.
func CanSetPriority(requester domain.Principal) bool {
	return requester.Role.IsStaff()
}

// CanChangeCategory reports whether requester may recategorize an issue.
func CanChangeCategory(requester domain.Principal) bool {
	return requester.Role.IsStaff()
}

// CanDelete reports whether requester may use the administrative delete override.
func CanDelete(requester domain.Principal) bool {
	return requester.Role == domain.RoleAdmin
}

// ActionsFor computes the available actions for re-rendering a view.
func ActionsFor(issue domain.Issue, requester domain.Principal, owner *domain.DepartmentID) Actions {
	if !CanView(issue, requester, owner) {
		return Actions{Transitions: []domain.Status{}}
	}
	open := issue.Status != domain.StatusClosed
	actions := Actions{
		View:           true,
		Comment:        open,
		Assign:         open && CanAssign(requester),
		SetPriority:    open && CanSetPriority(requester),
		ChangeCategory: open && CanChangeCategory(requester),
		Delete:         CanDelete(requester),
		Transitions:    []domain.Status{},
	}
	for _, target := range domain.AllowedTargets(issue.Status) {
		if CanTransition(issue, target, requester) {
			actions.Transitions = append(actions.Transitions, target)
		}
	}
	return actions
}

// Redact returns the copy of issue that requester is allowed to see. All
// modeled issue fields are currently visible to anyone who can view the issue.
func Redact(issue domain.Issue, _ domain.Principal) domain.Issue {
	return issue.Clone()
}

// RedactHistory strips audit entries students must not see.
func RedactHistory(entries []domain.IssueHistory, requester domain.Principal) []domain.IssueHistory {
	if requester.Role.IsStaff() {
		return append([]domain.IssueHistory{}, entries...)
	}
	allowed := []domain.IssueHistory{}
	for _, entry := range entries {
		if entry.ChangeType != domain.ChangeTypeStatus && entry.ChangeType != domain.ChangeTypeAssignee {
			continue
		}
		entry.ActorID = nil
		allowed = append(allowed, entry)
	}
	return allowed
}

func ownerOf(issue domain.Issue, categories map[domain.CategoryID]domain.Category) *domain.DepartmentID {
	category, ok := categories[issue.CategoryID]
	if !ok {
		return nil
	}
	dept := category.DepartmentID
	return &dept
}
