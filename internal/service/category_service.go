package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/cache"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/validation"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
	"github.com/spec-kit/issue-service/pkg/util/retry"
)

// CategoryInput describes a category create or update.
type CategoryInput struct {
	ID              domain.CategoryID   `json:"id"`
	Name            string              `json:"name" validate:"required,max=120"`
	DefaultPriority domain.Priority     `json:"default_priority" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	ResponseWindow  time.Duration       `json:"-"`
	DepartmentID    domain.DepartmentID `json:"department_id" validate:"required"`
	Active          *bool               `json:"active"`
}

// CategoryService is the category registry: admin-managed reference data
// that supplies default priority and SLA window to new issues.
type CategoryService struct {
	categories  repository.CategoryRepository
	departments repository.DepartmentRepository
	cache       *cache.CategoryCache
	validator   *validation.Validator
	retry       retry.Policy
	logger      *zap.Logger
}

// CategoryDependencies bundles collaborators for the registry.
type CategoryDependencies struct {
	CategoryRepo   repository.CategoryRepository
	DepartmentRepo repository.DepartmentRepository
	Cache          *cache.CategoryCache
	Validator      *validation.Validator
	Retry          retry.Policy
	Logger         *zap.Logger
}

// NewCategoryService constructs the registry.
func NewCategoryService(deps CategoryDependencies) *CategoryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := deps.Retry
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	v := deps.Validator
	if v == nil {
		v = validation.New(nil, nil)
	}
	return &CategoryService{
		categories:  deps.CategoryRepo,
		departments: deps.DepartmentRepo,
		cache:       deps.Cache,
		validator:   v,
		retry:       policy,
		logger:      logger,
	}
}

// Create registers a new category. Admin only.
func (s *CategoryService) Create(ctx context.Context, actor domain.Principal, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.ResponseWindow = input.ResponseWindow.Round(time.Second)
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	category := &domain.Category{
		ID:              input.ID,
		Name:            input.Name,
		DefaultPriority: input.DefaultPriority,
		ResponseWindow:  input.ResponseWindow,
		DepartmentID:    input.DepartmentID,
		Active:          input.Active == nil || *input.Active,
	}
	if category.ID == "" {
		category.ID = domain.CategoryID(uuid.NewString())
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, category.ID)
	s.logger.Info("category created",
		zap.String("category_id", string(category.ID)),
		zap.String("actor_id", string(actor.UserID)))
	return category, nil
}

// Update replaces a category's editable fields. Existing issues keep their
// due_at; only newly created or recategorized issues see the new window.
func (s *CategoryService) Update(ctx context.Context, actor domain.Principal, id domain.CategoryID, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.ResponseWindow = input.ResponseWindow.Round(time.Second)
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	category.Name = input.Name
	category.DefaultPriority = input.DefaultPriority
	category.ResponseWindow = input.ResponseWindow
	category.DepartmentID = input.DepartmentID
	if input.Active != nil {
		category.Active = *input.Active
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)
	s.logger.Info("category updated",
		zap.String("category_id", string(id)),
		zap.String("actor_id", string(actor.UserID)))
	return category, nil
}

// Deactivate stops a category from resolving for new issues. Admin only.
func (s *CategoryService) Deactivate(ctx context.Context, actor domain.Principal, id domain.CategoryID) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !category.Active {
		return category, nil
	}
	category.Active = false
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)
	s.logger.Info("category deactivated",
		zap.String("category_id", string(id)),
		zap.String("actor_id", string(actor.UserID)))
	return category, nil
}

// Get returns a category, active or not.
func (s *CategoryService) Get(ctx context.Context, id domain.CategoryID) (*domain.Category, error) {
	if category, ok := s.cache.Get(ctx, id); ok {
		return &category, nil
	}
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, *category)
	return category, nil
}

// List returns categories ordered by name. Only admins may include inactive ones.
func (s *CategoryService) List(ctx context.Context, actor domain.Principal, includeInactive bool) ([]domain.Category, error) {
	includeInactive = includeInactive && actor.Role == domain.RoleAdmin
	return retry.WithBackoff(ctx, s.retry, func() ([]domain.Category, error) {
		return s.categories.List(ctx, includeInactive)
	})
}

// ResolveDefaults returns the defaults used at issue creation. Unknown and
// inactive categories are NotFound.
func (s *CategoryService) ResolveDefaults(ctx context.Context, id domain.CategoryID) (domain.CategoryDefaults, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return domain.CategoryDefaults{}, err
	}
	if !category.Active {
		return domain.CategoryDefaults{}, apperrors.NewNotFound("category", map[string]any{"category_id": id})
	}
	return category.Defaults(), nil
}

// Index returns every category keyed by id, including inactive ones, for
// department scoping of issues that still reference them.
func (s *CategoryService) Index(ctx context.Context) (map[domain.CategoryID]domain.Category, error) {
	all, err := retry.WithBackoff(ctx, s.retry, func() ([]domain.Category, error) {
		return s.categories.List(ctx, true)
	})
	if err != nil {
		return nil, err
	}
	index := make(map[domain.CategoryID]domain.Category, len(all))
	for _, category := range all {
		index[category.ID] = category
	}
	return index, nil
}

func (s *CategoryService) load(ctx context.Context, id domain.CategoryID) (*domain.Category, error) {
	return retry.WithBackoff(ctx, s.retry, func() (*domain.Category, error) {
		return s.categories.GetByID(ctx, id)
	})
}

func (s *CategoryService) validateInput(ctx context.Context, input CategoryInput) error {
	fields := s.validator.Struct(input)
	// Windows are stored in whole seconds.
	if input.ResponseWindow < time.Second {
		fields = append(fields, apperrors.FieldError{Field: "response_window_hours", Message: "must be at least one second"})
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid category", fields...)
	}
	dept, err := retry.WithBackoff(ctx, s.retry, func() (*domain.Department, error) {
		return s.departments.GetByID(ctx, input.DepartmentID)
	})
	if err != nil {
		return err
	}
	if !dept.IsActive {
		return apperrors.NewValidationError("invalid category",
			apperrors.FieldError{Field: "department_id", Message: "department is inactive"})
	}
	return nil
}

func requireAdmin(actor domain.Principal) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}
