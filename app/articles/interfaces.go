package articles

import "time"

// The storage collaborators below are owned by the worker context and must
// only be touched inside jobs submitted to the StorageQueue. The service
// never decomposes a failed batch per row; a failed batch simply produces no
// state change.

// ArticleStore persists article base rows, 1:1-joined with statuses on reads.
type ArticleStore interface {
	// InsertArticles writes base rows with insert-or-ignore semantics.
	// Duplicate keys are silently skipped to tolerate races with concurrent
	// merge cycles.
	InsertArticles(arts []Article) error

	// FetchArticles returns every article for the feed joined with its
	// status, without relation sets. A nil displayCutoff bypasses the
	// display window entirely.
	FetchArticles(feedID string, displayCutoff *time.Time) ([]*Article, error)

	FetchUnreadArticles(feedIDs []string, displayCutoff time.Time) ([]*Article, error)
	UnreadCounts(feedIDs []string, displayCutoff time.Time) (map[string]int, error)
	CountArticles() (int, error)

	// PurgeArticles drops rows failing the retention predicate. Statuses
	// stay behind so purged articles are never re-created as new.
	PurgeArticles(retentionCutoff time.Time) (int64, error)

	ArticlesNeedingContent(feedID string, limit int) ([]ContentCandidate, error)
	UpdateContent(articleID, content string, extractedAt time.Time) error
}

// ContentCandidate identifies an article whose full content has not been
// extracted yet.
type ContentCandidate struct {
	ArticleID string `db:"article_id"`
	Link      string `db:"link"`
}

// StatusStore persists per-article status flags independently of article
// rows.
type StatusStore interface {
	// EnsureStatuses creates missing status rows, leaving existing ones
	// untouched.
	EnsureStatuses(statuses []Status) error
	FetchStatuses(articleIDs []string) (map[string]Status, error)
	MarkFlags(articleIDs []string, flag Flag, value bool) error
}

// RelationStore persists one relation kind's join state.
type RelationStore[T Related] interface {
	// AttachRelatedObjects populates the in-memory relation sets of freshly
	// fetched articles.
	AttachRelatedObjects(arts []*Article) error
	// SaveRelatedObjects replaces the persisted relation state for the given
	// article snapshots.
	SaveRelatedObjects(arts []Article) error
}

// StorageQueue serializes storage I/O on the worker context. Jobs run in
// FIFO order; completions are invoked on the worker goroutine after the job
// finishes. Queued jobs always run to completion, there is no cancellation.
type StorageQueue interface {
	Async(name string, run func() error, completion func(error))
	Sync(name string, run func() error) error
}
