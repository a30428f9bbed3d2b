package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/service"
)

// DirectoryHandler serves reference data.
type DirectoryHandler struct {
	service *service.DirectoryService
}

func NewDirectoryHandler(directoryService *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: directoryService}
}

// Departments GET /departments.
func (h *DirectoryHandler) Departments(c *fiber.Ctx) error {
	departments, err := h.service.ListDepartments(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.DepartmentResponse, 0, len(departments))
	for _, d := range departments {
		items = append(items, dto.DepartmentResponse{ID: string(d.ID), Name: d.Name, Description: d.Description})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Assignees GET /assignees.
func (h *DirectoryHandler) Assignees(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var dept *domain.DepartmentID
	if v := c.Query("department_id"); v != "" {
		id := domain.DepartmentID(v)
		dept = &id
	}
	users, err := h.service.ListAssignees(c.UserContext(), principal, dept)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, dto.UserResponse{
			ID:           string(u.ID),
			Name:         u.Name,
			Email:        u.Email,
			Role:         u.Role,
			DepartmentID: optionalString(u.DepartmentID),
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
