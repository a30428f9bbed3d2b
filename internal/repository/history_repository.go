package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// HistoryRepository stores audit entries.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.IssueHistory) error
	ListByIssue(ctx context.Context, issueID domain.IssueID) ([]domain.IssueHistory, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.IssueHistory) error {
	const query = `
        INSERT INTO issue_history (id, issue_id, actor_id, change_type, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		string(entry.IssueID),
		optionalUser(entry.ActorID),
		string(entry.ChangeType),
		entry.OldValue,
		entry.NewValue,
		entry.CreatedAt,
	)
	return translate(err, "issue history", map[string]any{"issue_id": entry.IssueID})
}

func (r *historyRepository) ListByIssue(ctx context.Context, issueID domain.IssueID) ([]domain.IssueHistory, error) {
	const query = `
        SELECT id, issue_id, actor_id, change_type, old_value, new_value, created_at
        FROM issue_history WHERE issue_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, string(issueID))
	if err != nil {
		return nil, translate(err, "issue history", nil)
	}
	defer rows.Close()

	result := []domain.IssueHistory{}
	for rows.Next() {
		var (
			entry      domain.IssueHistory
			issue      string
			actor      *string
			changeType string
		)
		if err := rows.Scan(
			&entry.ID,
			&issue,
			&actor,
			&changeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, translate(err, "issue history", nil)
		}
		entry.IssueID = domain.IssueID(issue)
		entry.ChangeType = domain.ChangeType(changeType)
		if actor != nil {
			entry.ActorID = domain.UserIDPtr(domain.UserID(*actor))
		}
		result = append(result, entry)
	}
	return result, translate(rows.Err(), "issue history", nil)
}
