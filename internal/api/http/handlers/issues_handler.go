package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/service"
	"github.com/spec-kit/issue-service/internal/validation"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// IssuesHandler exposes the issue lifecycle.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// Create POST /issues.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	draft := validation.Draft{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  domain.CategoryID(req.CategoryID),
		Priority:    req.Priority,
	}
	for _, ref := range req.Attachments {
		draft.Attachments = append(draft.Attachments, domain.FileID(ref))
	}
	view, err := h.service.Create(c.UserContext(), principal, draft)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(*view)})
}

// List GET /issues.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	filter, err := parseIssueQuery(c)
	if err != nil {
		return err
	}
	views, err := h.service.List(c.UserContext(), principal, filter)
	if err != nil {
		return err
	}
	items := make([]dto.IssueResponse, 0, len(views))
	for _, view := range views {
		items = append(items, issueResponse(view))
	}
	return c.JSON(fiber.Map{"data": items, "limit": filter.Limit, "offset": filter.Offset})
}

// Get GET /issues/:id.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	detail, err := h.service.Get(c.UserContext(), principal, domain.IssueID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(detail)})
}

// Transition POST /issues/:id/transitions.
func (h *IssuesHandler) Transition(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	view, err := h.service.Transition(c.UserContext(), principal, domain.IssueID(c.Params("id")), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(*view)})
}

// Reopen POST /issues/:id/reopen.
func (h *IssuesHandler) Reopen(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.Reopen(c.UserContext(), principal, domain.IssueID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(*view)})
}

// Assign PUT /issues/:id/assignee.
func (h *IssuesHandler) Assign(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	var assignee *domain.UserID
	if req.AssigneeID != nil && strings.TrimSpace(*req.AssigneeID) != "" {
		id := domain.UserID(strings.TrimSpace(*req.AssigneeID))
		assignee = &id
	}
	view, err := h.service.Assign(c.UserContext(), principal, domain.IssueID(c.Params("id")), assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(*view)})
}

// SetPriority PUT /issues/:id/priority.
func (h *IssuesHandler) SetPriority(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.PriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	view, err := h.service.SetPriority(c.UserContext(), principal, domain.IssueID(c.Params("id")), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(*view)})
}

// ChangeCategory PUT /issues/:id/category.
func (h *IssuesHandler) ChangeCategory(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CategoryChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		return apperrors.NewValidationError("invalid payload",
			apperrors.FieldError{Field: "category_id", Message: "is required"})
	}
	view, err := h.service.ChangeCategory(c.UserContext(), principal, domain.IssueID(c.Params("id")), domain.CategoryID(strings.TrimSpace(req.CategoryID)))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(*view)})
}

// AddComment POST /issues/:id/comments.
func (h *IssuesHandler) AddComment(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	comment, err := h.service.AddComment(c.UserContext(), principal, domain.IssueID(c.Params("id")), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(*comment)})
}

// History GET /issues/:id/history.
func (h *IssuesHandler) History(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), principal, domain.IssueID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// Delete DELETE /issues/:id.
func (h *IssuesHandler) Delete(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), principal, domain.IssueID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseIssueQuery(c *fiber.Ctx) (service.IssueListFilter, error) {
	filter := service.IssueListFilter{
		SearchTerm:  strings.TrimSpace(c.Query("q")),
		OverdueOnly: c.QueryBool("overdue", false),
		Limit:       c.QueryInt("limit", 20),
		Offset:      c.QueryInt("offset", 0),
	}
	var fields []apperrors.FieldError

	for _, part := range splitList(c.Query("status")) {
		status := domain.Status(strings.ToUpper(part))
		if !status.Valid() {
			fields = append(fields, apperrors.FieldError{Field: "status", Message: "unknown status " + part})
			continue
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, part := range splitList(c.Query("priority")) {
		priority := domain.Priority(strings.ToUpper(part))
		if !priority.Valid() {
			fields = append(fields, apperrors.FieldError{Field: "priority", Message: "unknown priority " + part})
			continue
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if v := c.Query("category_id"); v != "" {
		id := domain.CategoryID(v)
		filter.CategoryID = &id
	}
	if v := c.Query("assignee_id"); v != "" {
		id := domain.UserID(v)
		filter.AssigneeID = &id
	}
	for _, bound := range []struct {
		key string
		dst **time.Time
	}{{"created_from", &filter.CreatedFrom}, {"created_to", &filter.CreatedTo}} {
		v := c.Query(bound.key)
		if v == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fields = append(fields, apperrors.FieldError{Field: bound.key, Message: "must be an RFC3339 timestamp"})
			continue
		}
		*bound.dst = &parsed
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		fields = append(fields, apperrors.FieldError{Field: "limit", Message: "must be between 1 and 100"})
	}
	if filter.Offset < 0 {
		fields = append(fields, apperrors.FieldError{Field: "offset", Message: "must not be negative"})
	}

	if len(fields) > 0 {
		return filter, apperrors.NewValidationError("invalid query", fields...)
	}
	return filter, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
