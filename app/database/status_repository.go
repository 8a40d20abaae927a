package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"feedbase/app/articles"
)

// StatusRepository handles database operations for per-article status rows.
// Statuses exist independently of article rows: they are ensured for incoming
// articleIDs before any content is written, and survive article purges.
type StatusRepository struct {
	db *DB
}

func NewStatusRepository(db *DB) *StatusRepository {
	return &StatusRepository{db: db}
}

var _ articles.StatusStore = (*StatusRepository)(nil)

// EnsureStatuses creates missing status rows with the provided defaults.
// Existing rows are left untouched.
func (r *StatusRepository) EnsureStatuses(statuses []articles.Status) error {
	if len(statuses) == 0 {
		return nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range statuses {
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO statuses (article_id, read, starred, user_deleted, date_arrived)
			VALUES (?, ?, ?, ?, ?)
		`, s.ArticleID, s.Read, s.Starred, s.UserDeleted, s.DateArrived)
		if err != nil {
			return fmt.Errorf("failed to ensure status %s: %w", s.ArticleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status insert: %w", err)
	}
	return nil
}

// FetchStatuses returns the statuses for the given articleIDs, keyed by
// articleID. IDs with no stored status are simply absent from the result.
func (r *StatusRepository) FetchStatuses(articleIDs []string) (map[string]articles.Status, error) {
	result := make(map[string]articles.Status, len(articleIDs))
	if len(articleIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT article_id, read, starred, user_deleted, date_arrived
		FROM statuses
		WHERE article_id IN (?)
	`, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build status query: %w", err)
	}

	rows, err := r.db.Queryx(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status articles.Status
		if err := rows.StructScan(&status); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		result[status.ArticleID] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status rows: %w", err)
	}

	return result, nil
}

// MarkFlags sets one status flag for the given articleIDs.
func (r *StatusRepository) MarkFlags(articleIDs []string, flag articles.Flag, value bool) error {
	if len(articleIDs) == 0 {
		return nil
	}
	if !flag.Valid() {
		return fmt.Errorf("unknown status flag %q", flag)
	}

	query, args, err := sqlx.In(
		"UPDATE statuses SET "+string(flag)+" = ? WHERE article_id IN (?)",
		value, articleIDs)
	if err != nil {
		return fmt.Errorf("failed to build mark query: %w", err)
	}

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to mark %s: %w", flag, err)
	}
	return nil
}
