package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// DepartmentRepository manages department persistence.
type DepartmentRepository interface {
	Upsert(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id domain.DepartmentID) (*domain.Department, error)
	ListActive(ctx context.Context) ([]domain.Department, error)
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

func (r *departmentRepository) Upsert(ctx context.Context, dept *domain.Department) error {
	const query = `
        INSERT INTO departments (id, name, description, is_active)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name, description=EXCLUDED.description, is_active=EXCLUDED.is_active, updated_at=NOW()
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		string(dept.ID),
		dept.Name,
		dept.Description,
		dept.IsActive,
	).Scan(&dept.CreatedAt, &dept.UpdatedAt)
	return translate(err, "department", map[string]any{"department_id": dept.ID})
}

func (r *departmentRepository) GetByID(ctx context.Context, id domain.DepartmentID) (*domain.Department, error) {
	const query = `
        SELECT id, name, description, is_active, created_at, updated_at
        FROM departments WHERE id=$1`
	dept, err := scanDepartment(r.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		return nil, translate(err, "department", map[string]any{"department_id": id})
	}
	return dept, nil
}

func (r *departmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	const query = `
        SELECT id, name, description, is_active, created_at, updated_at
        FROM departments WHERE is_active = TRUE ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err, "department", nil)
	}
	defer rows.Close()

	result := []domain.Department{}
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, translate(err, "department", nil)
		}
		result = append(result, *dept)
	}
	return result, translate(rows.Err(), "department", nil)
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var (
		dept domain.Department
		id   string
	)
	if err := row.Scan(&id, &dept.Name, &dept.Description, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
		return nil, err
	}
	dept.ID = domain.DepartmentID(id)
	return &dept, nil
}
