package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/service"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

func principalFrom(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func invalidPayload(err error) error {
	return apperrors.NewValidationError("invalid payload",
		apperrors.FieldError{Field: "body", Message: err.Error()})
}

func issueResponse(view service.IssueView) dto.IssueResponse {
	issue := view.Issue
	attachments := make([]string, 0, len(issue.Attachments))
	for _, ref := range issue.Attachments {
		attachments = append(attachments, string(ref))
	}
	return dto.IssueResponse{
		ID:          string(issue.ID),
		Title:       issue.Title,
		Description: issue.Description,
		CategoryID:  string(issue.CategoryID),
		Priority:    issue.Priority,
		Status:      issue.Status,
		ReporterID:  string(issue.ReporterID),
		AssigneeID:  optionalString(issue.AssigneeID),
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
		DueAt:       issue.DueAt,
		ResolvedAt:  issue.ResolvedAt,
		Attachments: attachments,
		Overdue:     view.Overdue,
		Actions:     view.Actions,
	}
}

func issueDetail(detail *service.IssueDetail) dto.IssueDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(detail.Issue.Comments))
	for _, comment := range detail.Issue.Comments {
		comments = append(comments, commentResponse(comment))
	}
	return dto.IssueDetailResponse{
		IssueResponse: issueResponse(detail.IssueView),
		Comments:      comments,
		History:       historyResponses(detail.History),
	}
}

func commentResponse(comment domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        string(comment.ID),
		IssueID:   string(comment.IssueID),
		AuthorID:  string(comment.AuthorID),
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func historyResponses(entries []domain.IssueHistory) []dto.HistoryResponse {
	out := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.HistoryResponse{
			ID:         entry.ID,
			ActorID:    optionalString(entry.ActorID),
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

func categoryResponse(category *domain.Category) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:                  string(category.ID),
		Name:                category.Name,
		DefaultPriority:     category.DefaultPriority,
		ResponseWindowHours: category.ResponseWindow.Hours(),
		DepartmentID:        string(category.DepartmentID),
		Active:              category.Active,
		CreatedAt:           category.CreatedAt,
		UpdatedAt:           category.UpdatedAt,
	}
}

func categoryInput(req dto.CategoryRequest) service.CategoryInput {
	return service.CategoryInput{
		ID:              domain.CategoryID(req.ID),
		Name:            req.Name,
		DefaultPriority: req.DefaultPriority,
		ResponseWindow:  time.Duration(req.ResponseWindowHours * float64(time.Hour)),
		DepartmentID:    domain.DepartmentID(req.DepartmentID),
		Active:          req.Active,
	}
}

func optionalString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
