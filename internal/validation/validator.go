// Package validation checks issue drafts before the workflow engine sees them.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/issue-service/internal/domain"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// Draft is the caller-supplied issue before validation.
type Draft struct {
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description" validate:"required"`
	CategoryID  domain.CategoryID `json:"category_id" validate:"required"`
	Priority    *domain.Priority  `json:"priority"`
	Attachments []domain.FileID   `json:"attachments" validate:"dive,required"`
}

// ValidatedIssue is a draft that passed every rule, with category defaults applied.
type ValidatedIssue struct {
	Title          string
	Description    string
	CategoryID     domain.CategoryID
	Priority       domain.Priority
	ResponseWindow time.Duration
	DepartmentID   domain.DepartmentID
	Attachments    []domain.FileID
}

// CategoryResolver supplies category defaults.
type CategoryResolver interface {
	ResolveDefaults(ctx context.Context, id domain.CategoryID) (domain.CategoryDefaults, error)
}

// AttachmentCatalog knows which file references were uploaded to the file store.
type AttachmentCatalog interface {
	Exists(ctx context.Context, id domain.FileID) (bool, error)
}

// Validator applies the issue creation rules.
type Validator struct {
	validate    *validator.Validate
	categories  CategoryResolver
	attachments AttachmentCatalog
}

// New constructs a Validator.
func New(categories CategoryResolver, attachments AttachmentCatalog) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, categories: categories, attachments: attachments}
}

// Struct validates any tagged struct and reports every failing field.
func (v *Validator) Struct(s any) []apperrors.FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []apperrors.FieldError{{Field: "", Message: err.Error()}}
	}
	fields := make([]apperrors.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return fields
}

// Validate checks draft for a creator of the given role. Domain failures are
// returned as a single ValidationError carrying every failing field; store
// failures propagate unchanged.
func (v *Validator) Validate(ctx context.Context, draft Draft, creatorRole domain.Role) (ValidatedIssue, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.CategoryID = domain.CategoryID(strings.TrimSpace(string(draft.CategoryID)))

	fields := v.Struct(draft)

	if !creatorRole.Valid() {
		fields = append(fields, apperrors.FieldError{Field: "role", Message: fmt.Sprintf("unknown role %q", creatorRole)})
	}

	result := ValidatedIssue{
		Title:       draft.Title,
		Description: draft.Description,
		CategoryID:  draft.CategoryID,
		Attachments: append([]domain.FileID(nil), draft.Attachments...),
	}

	if creatorRole.IsStaff() {
		switch {
		case draft.Priority == nil || *draft.Priority == "":
			fields = append(fields, apperrors.FieldError{Field: "priority", Message: "is required"})
		case !draft.Priority.Valid():
			fields = append(fields, apperrors.FieldError{Field: "priority", Message: fmt.Sprintf("must be one of %v", domain.Priorities)})
		default:
			result.Priority = *draft.Priority
		}
	}

	if draft.CategoryID != "" {
		defaults, err := v.categories.ResolveDefaults(ctx, draft.CategoryID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			fields = append(fields, apperrors.FieldError{Field: "category_id", Message: "unknown or inactive category"})
		case err != nil:
			return ValidatedIssue{}, err
		default:
			result.ResponseWindow = defaults.ResponseWindow
			result.DepartmentID = defaults.DepartmentID
			if creatorRole == domain.RoleStudent {
				result.Priority = defaults.Priority
			}
		}
	}

	for i, ref := range draft.Attachments {
		if ref == "" {
			continue
		}
		ok, err := v.attachments.Exists(ctx, ref)
		if err != nil {
			return ValidatedIssue{}, err
		}
		if !ok {
			fields = append(fields, apperrors.FieldError{
				Field:   fmt.Sprintf("attachments[%d]", i),
				Message: "not a previously uploaded file",
			})
		}
	}

	if len(fields) > 0 {
		return ValidatedIssue{}, apperrors.NewValidationError("invalid issue", fields...)
	}
	return result, nil
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed on '%s' validation", fe.Tag())
}
