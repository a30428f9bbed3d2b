package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
	"github.com/spec-kit/issue-service/pkg/util/retry"
)

// DirectoryService exposes reference data: departments and the users that
// can hold assignments.
type DirectoryService struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
	categories  repository.CategoryRepository
	retry       retry.Policy
	logger      *zap.Logger
}

// DirectoryDependencies bundles repositories.
type DirectoryDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
	CategoryRepo   repository.CategoryRepository
	Retry          retry.Policy
	Logger         *zap.Logger
}

// NewDirectoryService builds the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := deps.Retry
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	return &DirectoryService{
		departments: deps.DepartmentRepo,
		users:       deps.UserRepo,
		categories:  deps.CategoryRepo,
		retry:       policy,
		logger:      logger,
	}
}

// ListDepartments returns active departments.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return retry.WithBackoff(ctx, s.retry, func() ([]domain.Department, error) {
		return s.departments.ListActive(ctx)
	})
}

// ListAssignees returns active lecturers and admins. Staff only.
func (s *DirectoryService) ListAssignees(ctx context.Context, actor domain.Principal, departmentID *domain.DepartmentID) ([]domain.User, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	active := true
	result := []domain.User{}
	for _, role := range []domain.Role{domain.RoleLecturer, domain.RoleAdmin} {
		r := role
		users, err := retry.WithBackoff(ctx, s.retry, func() ([]domain.User, error) {
			return s.users.List(ctx, repository.UserFilter{Role: &r, DepartmentID: departmentID, Active: &active, Limit: 500})
		})
		if err != nil {
			return nil, err
		}
		result = append(result, users...)
	}
	return result, nil
}

// ImportSeed upserts reference data from a seed file. Categories are created
// when missing and updated otherwise.
func (s *DirectoryService) ImportSeed(ctx context.Context, seed *config.Seed) error {
	for _, d := range seed.Departments {
		dept := &domain.Department{
			ID:          domain.DepartmentID(d.ID),
			Name:        d.Name,
			Description: d.Description,
			IsActive:    d.Active == nil || *d.Active,
		}
		if err := s.departments.Upsert(ctx, dept); err != nil {
			return err
		}
	}
	for _, c := range seed.Categories {
		category := &domain.Category{
			ID:              domain.CategoryID(c.ID),
			Name:            c.Name,
			DefaultPriority: domain.Priority(c.DefaultPriority),
			ResponseWindow:  c.ResponseWindow,
			DepartmentID:    domain.DepartmentID(c.DepartmentID),
			Active:          c.Active == nil || *c.Active,
		}
		_, err := s.categories.GetByID(ctx, category.ID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			err = s.categories.Create(ctx, category)
		case err == nil:
			err = s.categories.Update(ctx, category)
		}
		if err != nil {
			return err
		}
	}
	for _, u := range seed.Users {
		user := &domain.User{
			ID:     domain.UserID(u.ID),
			Name:   u.Name,
			Email:  u.Email,
			Role:   domain.Role(u.Role),
			Active: u.Active == nil || *u.Active,
		}
		if u.DepartmentID != "" {
			dept := domain.DepartmentID(u.DepartmentID)
			user.DepartmentID = &dept
		}
		if err := s.users.Upsert(ctx, user); err != nil {
			return err
		}
	}
	s.logger.Info("seed imported",
		zap.Int("departments", len(seed.Departments)),
		zap.Int("categories", len(seed.Categories)),
		zap.Int("users", len(seed.Users)))
	return nil
}
