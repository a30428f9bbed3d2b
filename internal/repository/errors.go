package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translate maps driver errors onto the domain taxonomy: missing rows become
// NotFound, constraint violations become ValidationError and everything else
// is treated as a transient store failure.
func translate(err error, resource string, details map[string]any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperrors.NewValidationError(resource+" already exists",
				apperrors.FieldError{Field: pgErr.ColumnName, Message: "must be unique"})
		case pgForeignKeyViolation:
			return apperrors.NewNotFound("referenced record", map[string]any{"constraint": pgErr.ConstraintName})
		case pgCheckViolation:
			return apperrors.NewValidationError("invalid "+resource,
				apperrors.FieldError{Field: pgErr.ColumnName, Message: pgErr.Message})
		}
	}
	return apperrors.NewStoreUnavailable(err)
}
