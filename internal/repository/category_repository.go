package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// CategoryRepository persists the category registry.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id domain.CategoryID) (*domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Category, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

const categoryColumns = `id, name, default_priority, response_window_seconds, department_id, active, created_at, updated_at`

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (id, name, default_priority, response_window_seconds, department_id, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		string(category.ID),
		category.Name,
		string(category.DefaultPriority),
		int64(category.ResponseWindow/time.Second),
		string(category.DepartmentID),
		category.Active,
	).Scan(&category.CreatedAt, &category.UpdatedAt)
	return translate(err, "category", map[string]any{"category_id": category.ID})
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	const query = `
        UPDATE categories SET name=$1, default_priority=$2, response_window_seconds=$3, department_id=$4,
            active=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		category.Name,
		string(category.DefaultPriority),
		int64(category.ResponseWindow/time.Second),
		string(category.DepartmentID),
		category.Active,
		string(category.ID),
	).Scan(&category.UpdatedAt)
	return translate(err, "category", map[string]any{"category_id": category.ID})
}

func (r *categoryRepository) GetByID(ctx context.Context, id domain.CategoryID) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id=$1`
	category, err := scanCategory(r.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		return nil, translate(err, "category", map[string]any{"category_id": id})
	}
	return category, nil
}

func (r *categoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if !includeInactive {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err, "category", nil)
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, translate(err, "category", nil)
		}
		result = append(result, *category)
	}
	return result, translate(rows.Err(), "category", nil)
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var (
		category      domain.Category
		id            string
		priority      string
		windowSeconds int64
		departmentID  string
	)
	if err := row.Scan(
		&id,
		&category.Name,
		&priority,
		&windowSeconds,
		&departmentID,
		&category.Active,
		&category.CreatedAt,
		&category.UpdatedAt,
	); err != nil {
		return nil, err
	}
	category.ID = domain.CategoryID(id)
	category.DefaultPriority = domain.Priority(priority)
	category.ResponseWindow = time.Duration(windowSeconds) * time.Second
	category.DepartmentID = domain.DepartmentID(departmentID)
	return &category, nil
}
