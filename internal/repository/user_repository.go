package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// UserFilter defines query params for directory listing.
type UserFilter struct {
	Role         *domain.Role
	DepartmentID *domain.DepartmentID
	Active       *bool
	Limit        int
	Offset       int
}

// UserRepository reads the user directory mirrored from the identity provider.
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, role, department_id, active, created_at, updated_at`

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email, role, department_id, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name, email=EXCLUDED.email, role=EXCLUDED.role,
            department_id=EXCLUDED.department_id, active=EXCLUDED.active, updated_at=NOW()
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		string(user.ID),
		user.Name,
		user.Email,
		string(user.Role),
		optionalDepartment(user.DepartmentID),
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translate(err, "user", map[string]any{"user_id": user.ID})
}

func (r *userRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		return nil, translate(err, "user", map[string]any{"user_id": id})
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, translate(err, "user", map[string]any{"email": email})
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, string(*filter.DepartmentID))
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY name ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "user", nil)
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, translate(err, "user", nil)
		}
		result = append(result, *user)
	}
	return result, translate(rows.Err(), "user", nil)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		id           string
		role         string
		departmentID *string
	)
	if err := row.Scan(
		&id,
		&user.Name,
		&user.Email,
		&role,
		&departmentID,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.ID = domain.UserID(id)
	user.Role = domain.Role(role)
	if departmentID != nil {
		dept := domain.DepartmentID(*departmentID)
		user.DepartmentID = &dept
	}
	return &user, nil
}

func optionalDepartment(id *domain.DepartmentID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}
