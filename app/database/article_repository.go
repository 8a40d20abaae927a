package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"feedbase/app/articles"
)

// ArticleRepository handles database operations for article base rows and
// their 1:1-joined statuses.
type ArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

var _ articles.ArticleStore = (*ArticleRepository)(nil)

type articleRow struct {
	ArticleID   string       `db:"article_id"`
	FeedID      string       `db:"feed_id"`
	GUID        string       `db:"guid"`
	Title       string       `db:"title"`
	Link        string       `db:"link"`
	Summary     string       `db:"summary"`
	Content     string       `db:"content"`
	PublishedAt sql.NullTime `db:"published_at"`
	Read        bool         `db:"read"`
	Starred     bool         `db:"starred"`
	UserDeleted bool         `db:"user_deleted"`
	DateArrived time.Time    `db:"date_arrived"`
}

func (row articleRow) toArticle() *articles.Article {
	article := &articles.Article{
		ArticleID: row.ArticleID,
		FeedID:    row.FeedID,
		GUID:      row.GUID,
		Title:     row.Title,
		Link:      row.Link,
		Summary:   row.Summary,
		Content:   row.Content,
		Status: &articles.Status{
			ArticleID:   row.ArticleID,
			Read:        row.Read,
			Starred:     row.Starred,
			UserDeleted: row.UserDeleted,
			DateArrived: row.DateArrived,
		},
	}
	if row.PublishedAt.Valid {
		article.PublishedAt = row.PublishedAt.Time
	}
	return article
}

const articleColumns = `
	a.article_id, a.feed_id, a.guid, a.title, a.link, a.summary, a.content, a.published_at,
	s.read, s.starred, s.user_deleted, s.date_arrived`

// InsertArticles writes base rows with insert-or-ignore semantics; duplicate
// keys from concurrent merge cycles are silently skipped.
func (r *ArticleRepository) InsertArticles(arts []articles.Article) error {
	if len(arts) == 0 {
		return nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range arts {
		var publishedAt any
		if !a.PublishedAt.IsZero() {
			publishedAt = a.PublishedAt
		}
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO articles (article_id, feed_id, guid, title, link, summary, content, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ArticleID, a.FeedID, a.GUID, a.Title, a.Link, a.Summary, a.Content, publishedAt)
		if err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ArticleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article insert: %w", err)
	}
	return nil
}

// FetchArticles returns the feed's articles joined with statuses, without
// relation sets. A nil displayCutoff bypasses the display window.
func (r *ArticleRepository) FetchArticles(feedID string, displayCutoff *time.Time) ([]*articles.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		JOIN statuses s ON s.article_id = a.article_id
		WHERE a.feed_id = ?`
	args := []any{feedID}

	if displayCutoff != nil {
		query += ` AND s.user_deleted = 0 AND (s.starred = 1 OR s.date_arrived > ?)`
		args = append(args, *displayCutoff)
	}
	query += ` ORDER BY s.date_arrived DESC`

	return r.queryArticles(query, args...)
}

// FetchUnreadArticles returns unread articles across feeds, restricted to
// the display window.
func (r *ArticleRepository) FetchUnreadArticles(feedIDs []string, displayCutoff time.Time) ([]*articles.Article, error) {
	if len(feedIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+articleColumns+`
		FROM articles a
		JOIN statuses s ON s.article_id = a.article_id
		WHERE a.feed_id IN (?)
		  AND s.read = 0
		  AND s.user_deleted = 0
		  AND (s.starred = 1 OR s.date_arrived > ?)
		ORDER BY s.date_arrived DESC
	`, feedIDs, displayCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to build unread query: %w", err)
	}

	return r.queryArticles(query, args...)
}

// UnreadCounts counts articles that are both unread and inside the display
// window, per feed. Feeds with nothing unread report zero.
func (r *ArticleRepository) UnreadCounts(feedIDs []string, displayCutoff time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(feedIDs))
	for _, id := range feedIDs {
		counts[id] = 0
	}
	if len(feedIDs) == 0 {
		return counts, nil
	}

	query, args, err := sqlx.In(`
		SELECT a.feed_id, COUNT(*) AS unread
		FROM articles a
		JOIN statuses s ON s.article_id = a.article_id
		WHERE a.feed_id IN (?)
		  AND s.read = 0
		  AND s.user_deleted = 0
		  AND (s.starred = 1 OR s.date_arrived > ?)
		GROUP BY a.feed_id
	`, feedIDs, displayCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to build unread counts query: %w", err)
	}

	rows, err := r.db.Queryx(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feedID string
		var unread int
		if err := rows.Scan(&feedID, &unread); err != nil {
			return nil, fmt.Errorf("failed to scan unread count row: %w", err)
		}
		counts[feedID] = unread
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread count rows: %w", err)
	}

	return counts, nil
}

// CountArticles returns the total number of stored articles.
func (r *ArticleRepository) CountArticles() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// PurgeArticles deletes article rows and their join rows for articles failing
// the retention predicate. Status rows are kept so purged articles cannot
// come back as new.
func (r *ArticleRepository) PurgeArticles(retentionCutoff time.Time) (int64, error) {
	var ids []string
	err := r.db.Select(&ids, `
		SELECT a.article_id
		FROM articles a
		JOIN statuses s ON s.article_id = a.article_id
		WHERE s.user_deleted = 1 OR (s.starred = 0 AND s.date_arrived <= ?)
	`, retentionCutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to select purgeable articles: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"article_authors", "article_tags", "article_attachments", "articles"} {
		query, args, err := sqlx.In("DELETE FROM "+table+" WHERE article_id IN (?)", ids)
		if err != nil {
			return 0, fmt.Errorf("failed to build purge query for %s: %w", table, err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return 0, fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}
	return int64(len(ids)), nil
}

// ArticlesNeedingContent returns articles whose full content has not been
// extracted yet, newest first.
func (r *ArticleRepository) ArticlesNeedingContent(feedID string, limit int) ([]articles.ContentCandidate, error) {
	var candidates []articles.ContentCandidate
	err := r.db.Select(&candidates, `
		SELECT a.article_id, a.link
		FROM articles a
		JOIN statuses s ON s.article_id = a.article_id
		WHERE a.feed_id = ?
		  AND a.extracted_at IS NULL
		  AND a.link != ''
		  AND s.user_deleted = 0
		ORDER BY a.published_at DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction candidates: %w", err)
	}
	return candidates, nil
}

// UpdateContent stores extracted content for one article.
func (r *ArticleRepository) UpdateContent(articleID, content string, extractedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE articles
		SET content = ?, extracted_at = ?
		WHERE article_id = ?
	`, content, extractedAt, articleID)
	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}
	return nil
}

func (r *ArticleRepository) queryArticles(query string, args ...any) ([]*articles.Article, error) {
	rows, err := r.db.Queryx(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	var result []*articles.Article
	for rows.Next() {
		var row articleRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		result = append(result, row.toArticle())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return result, nil
}
