package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

const defaultPageSize = 20

// LecturerScope restricts a query to issues assigned to UserID or owned by
// DepartmentID through their category.
type LecturerScope struct {
	UserID       domain.UserID
	DepartmentID *domain.DepartmentID
}

// IssueFilter captures list parameters. Role scoping is expressed through
// ReporterID (students) or Lecturer (lecturers); admins leave both empty.
type IssueFilter struct {
	ReporterID  *domain.UserID
	Lecturer    *LecturerScope
	AssigneeID  *domain.UserID
	CategoryID  *domain.CategoryID
	Statuses    []domain.Status
	Priorities  []domain.Priority
	SearchTerm  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	OverdueAt   *time.Time
	Limit       int
	Offset      int
}

// IssueRepository persists issue rows. Comments live in CommentRepository.
type IssueRepository interface {
	Get(ctx context.Context, id domain.IssueID) (*domain.Issue, error)
	Create(ctx context.Context, issue *domain.Issue) error
	// Update rewrites an existing row; NotFound when it was deleted meanwhile.
	Update(ctx context.Context, issue *domain.Issue) error
	// Touch bumps updated_at only.
	Touch(ctx context.Context, id domain.IssueID, at time.Time) error
	Query(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	Delete(ctx context.Context, id domain.IssueID) error
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates the Postgres repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `i.id, i.title, i.description, i.category_id, i.priority, i.status, i.reporter_id,
       i.assignee_id, i.created_at, i.updated_at, i.due_at, i.resolved_at, i.attachments`

func (r *issueRepository) Get(ctx context.Context, id domain.IssueID) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues i WHERE i.id=$1`
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		return nil, translate(err, "issue", map[string]any{"issue_id": id})
	}
	return issue, nil
}

// Create inserts a new row.
func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (id, title, description, category_id, priority, status, reporter_id,
                            assignee_id, created_at, updated_at, due_at, resolved_at, attachments)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.pool.Exec(ctx, query,
		string(issue.ID),
		issue.Title,
		issue.Description,
		string(issue.CategoryID),
		string(issue.Priority),
		string(issue.Status),
		string(issue.ReporterID),
		optionalUser(issue.AssigneeID),
		issue.CreatedAt,
		issue.UpdatedAt,
		issue.DueAt,
		issue.ResolvedAt,
		fileIDsToStrings(issue.Attachments),
	)
	return translate(err, "issue", map[string]any{"issue_id": issue.ID})
}

// Update writes the mutable columns in one statement so status and
// resolved_at always commit together. It never resurrects a deleted row.
func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET
            title=$2, description=$3, category_id=$4, priority=$5, status=$6, assignee_id=$7,
            updated_at=$8, due_at=$9, resolved_at=$10, attachments=$11
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query,
		string(issue.ID),
		issue.Title,
		issue.Description,
		string(issue.CategoryID),
		string(issue.Priority),
		string(issue.Status),
		optionalUser(issue.AssigneeID),
		issue.UpdatedAt,
		issue.DueAt,
		issue.ResolvedAt,
		fileIDsToStrings(issue.Attachments),
	)
	return affectedOne(cmd, err, issue.ID)
}

func (r *issueRepository) Touch(ctx context.Context, id domain.IssueID, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE issues SET updated_at=$2 WHERE id=$1`, string(id), at)
	return affectedOne(cmd, err, id)
}

func affectedOne(cmd pgconn.CommandTag, err error, id domain.IssueID) error {
	if err != nil {
		return translate(err, "issue", map[string]any{"issue_id": id})
	}
	if cmd.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "issue", map[string]any{"issue_id": id})
	}
	return nil
}

func (r *issueRepository) Delete(ctx context.Context, id domain.IssueID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM issues WHERE id=$1`, string(id))
	return affectedOne(cmd, err, id)
}

func (r *issueRepository) Query(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	query, args := buildIssueQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "issue", nil)
	}
	defer rows.Close()

	result := []domain.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, translate(err, "issue", nil)
		}
		result = append(result, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "issue", nil)
	}
	return result, nil
}

func buildIssueQuery(filter IssueFilter) (string, []any) {
	base := `SELECT ` + issueColumns + ` FROM issues i JOIN categories c ON c.id = i.category_id`
	clauses := []string{"1=1"}
	args := []any{}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ReporterID != nil {
		clauses = append(clauses, "i.reporter_id="+next(string(*filter.ReporterID)))
	}
	if filter.Lecturer != nil {
		scope := "i.assignee_id=" + next(string(filter.Lecturer.UserID))
		if filter.Lecturer.DepartmentID != nil {
			scope = fmt.Sprintf("(%s OR c.department_id=%s)", scope, next(string(*filter.Lecturer.DepartmentID)))
		}
		clauses = append(clauses, scope)
	}
	if filter.AssigneeID != nil {
		clauses = append(clauses, "i.assignee_id="+next(string(*filter.AssigneeID)))
	}
	if filter.CategoryID != nil {
		clauses = append(clauses, "i.category_id="+next(string(*filter.CategoryID)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = next(string(status))
		}
		clauses = append(clauses, fmt.Sprintf("i.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			placeholders[i] = next(string(p))
		}
		clauses = append(clauses, fmt.Sprintf("i.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		clauses = append(clauses, "i.created_at >= "+next(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		clauses = append(clauses, "i.created_at <= "+next(*filter.CreatedTo))
	}
	if filter.OverdueAt != nil {
		clauses = append(clauses, fmt.Sprintf("i.due_at < %s AND i.status NOT IN ('RESOLVED','CLOSED')", next(*filter.OverdueAt)))
	}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		placeholder := next("%" + strings.ToLower(term) + "%")
		clauses = append(clauses, fmt.Sprintf("(LOWER(i.title) LIKE %s OR LOWER(i.description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY i.updated_at DESC, i.id LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var (
		issue       domain.Issue
		id          string
		categoryID  string
		priority    string
		status      string
		reporterID  string
		assigneeID  *string
		attachments []string
	)
	if err := row.Scan(
		&id,
		&issue.Title,
		&issue.Description,
		&categoryID,
		&priority,
		&status,
		&reporterID,
		&assigneeID,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.DueAt,
		&issue.ResolvedAt,
		&attachments,
	); err != nil {
		return nil, err
	}
	issue.ID = domain.IssueID(id)
	issue.CategoryID = domain.CategoryID(categoryID)
	issue.Priority = domain.Priority(priority)
	issue.Status = domain.Status(status)
	issue.ReporterID = domain.UserID(reporterID)
	if assigneeID != nil {
		issue.AssigneeID = domain.UserIDPtr(domain.UserID(*assigneeID))
	}
	for _, a := range attachments {
		issue.Attachments = append(issue.Attachments, domain.FileID(a))
	}
	return &issue, nil
}

func optionalUser(id *domain.UserID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func fileIDsToStrings(ids []domain.FileID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
