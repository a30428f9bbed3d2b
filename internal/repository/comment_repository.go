package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// CommentRepository manages the append-only issue thread.
type CommentRepository interface {
	Append(ctx context.Context, comment *domain.Comment) error
	ListByIssue(ctx context.Context, issueID domain.IssueID) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Append(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO issue_comments (id, issue_id, author_id, body, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, query,
		string(comment.ID),
		string(comment.IssueID),
		string(comment.AuthorID),
		comment.Body,
		comment.CreatedAt,
	)
	return translate(err, "comment", map[string]any{"issue_id": comment.IssueID})
}

func (r *commentRepository) ListByIssue(ctx context.Context, issueID domain.IssueID) ([]domain.Comment, error) {
	const query = `
        SELECT id, issue_id, author_id, body, created_at
        FROM issue_comments WHERE issue_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, string(issueID))
	if err != nil {
		return nil, translate(err, "comment", nil)
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var (
			comment           domain.Comment
			id, issue, author string
		)
		if err := rows.Scan(&id, &issue, &author, &comment.Body, &comment.CreatedAt); err != nil {
			return nil, translate(err, "comment", nil)
		}
		comment.ID = domain.CommentID(id)
		comment.IssueID = domain.IssueID(issue)
		comment.AuthorID = domain.UserID(author)
		result = append(result, comment)
	}
	return result, translate(rows.Err(), "comment", nil)
}
