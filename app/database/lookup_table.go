package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"feedbase/app/articles"
)

// LookupTable persists one relation kind: the articleID×relatedID join table
// plus, for kinds with their own entity rows, the entity table. All three
// kinds share this implementation and differ only in configuration.
type LookupTable[T articles.Related] struct {
	db            *DB
	kind          string
	joinTable     string
	relatedColumn string
	selectSQL     string
	scanRow       func(rows *sqlx.Rows) (string, T, error)
	relations     func(a *articles.Article) []T
	assign        func(a *articles.Article, rels []T)
	insertEntity  func(tx *sqlx.Tx, rel T) error
}

// AttachRelatedObjects populates the relation sets of freshly fetched
// articles. Articles with no join rows get a nil set; absence and empty are
// the same thing throughout the engine.
func (t *LookupTable[T]) AttachRelatedObjects(arts []*articles.Article) error {
	if len(arts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(arts))
	for _, a := range arts {
		ids = append(ids, a.ArticleID)
	}

	query, args, err := sqlx.In(t.selectSQL, ids)
	if err != nil {
		return fmt.Errorf("failed to build %s query: %w", t.kind, err)
	}

	rows, err := t.db.Queryx(query, args...)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", t.kind, err)
	}
	defer rows.Close()

	byArticle := make(map[string][]T)
	for rows.Next() {
		articleID, rel, err := t.scanRow(rows)
		if err != nil {
			return fmt.Errorf("failed to scan %s row: %w", t.kind, err)
		}
		byArticle[articleID] = append(byArticle[articleID], rel)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s rows: %w", t.kind, err)
	}

	for _, a := range arts {
		t.assign(a, byArticle[a.ArticleID])
	}
	return nil
}

// SaveRelatedObjects replaces the persisted relation state for the given
// article snapshots: join rows are rewritten per article, entity rows are
// inserted if absent and never deleted (they may be shared across articles).
func (t *LookupTable[T]) SaveRelatedObjects(arts []articles.Article) error {
	if len(arts) == 0 {
		return nil
	}

	tx, err := t.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range arts {
		a := &arts[i]
		if _, err := tx.Exec("DELETE FROM "+t.joinTable+" WHERE article_id = ?", a.ArticleID); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", t.kind, a.ArticleID, err)
		}
		for _, rel := range t.relations(a) {
			if t.insertEntity != nil {
				if err := t.insertEntity(tx, rel); err != nil {
					return fmt.Errorf("failed to insert %s entity: %w", t.kind, err)
				}
			}
			_, err := tx.Exec(
				"INSERT OR IGNORE INTO "+t.joinTable+" (article_id, "+t.relatedColumn+") VALUES (?, ?)",
				a.ArticleID, rel.RelatedID())
			if err != nil {
				return fmt.Errorf("failed to insert %s join row: %w", t.kind, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s save: %w", t.kind, err)
	}
	return nil
}

func NewAuthorsTable(db *DB) *LookupTable[articles.Author] {
	return &LookupTable[articles.Author]{
		db:            db,
		kind:          "authors",
		joinTable:     "article_authors",
		relatedColumn: "author_id",
		selectSQL: `
			SELECT j.article_id, e.author_id, e.name, e.email, e.url
			FROM article_authors j
			JOIN authors e ON e.author_id = j.author_id
			WHERE j.article_id IN (?)`,
		scanRow: func(rows *sqlx.Rows) (string, articles.Author, error) {
			var articleID string
			var author articles.Author
			err := rows.Scan(&articleID, &author.AuthorID, &author.Name, &author.Email, &author.URL)
			return articleID, author, err
		},
		relations: func(a *articles.Article) []articles.Author { return a.Authors },
		assign:    func(a *articles.Article, rels []articles.Author) { a.Authors = rels },
		insertEntity: func(tx *sqlx.Tx, rel articles.Author) error {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO authors (author_id, name, email, url)
				VALUES (?, ?, ?, ?)
			`, rel.AuthorID, rel.Name, rel.Email, rel.URL)
			return err
		},
	}
}

func NewTagsTable(db *DB) *LookupTable[articles.Tag] {
	return &LookupTable[articles.Tag]{
		db:            db,
		kind:          "tags",
		joinTable:     "article_tags",
		relatedColumn: "tag",
		selectSQL: `
			SELECT article_id, tag
			FROM article_tags
			WHERE article_id IN (?)`,
		scanRow: func(rows *sqlx.Rows) (string, articles.Tag, error) {
			var articleID, tag string
			err := rows.Scan(&articleID, &tag)
			return articleID, articles.Tag(tag), err
		},
		relations: func(a *articles.Article) []articles.Tag { return a.Tags },
		assign:    func(a *articles.Article, rels []articles.Tag) { a.Tags = rels },
		// Tags have no entity table; the join row holds the value itself.
	}
}

func NewAttachmentsTable(db *DB) *LookupTable[articles.Attachment] {
	return &LookupTable[articles.Attachment]{
		db:            db,
		kind:          "attachments",
		joinTable:     "article_attachments",
		relatedColumn: "attachment_id",
		selectSQL: `
			SELECT j.article_id, e.attachment_id, e.url, e.mime_type, e.size_bytes
			FROM article_attachments j
			JOIN attachments e ON e.attachment_id = j.attachment_id
			WHERE j.article_id IN (?)`,
		scanRow: func(rows *sqlx.Rows) (string, articles.Attachment, error) {
			var articleID string
			var attachment articles.Attachment
			err := rows.Scan(&articleID, &attachment.AttachmentID, &attachment.URL, &attachment.MimeType, &attachment.SizeBytes)
			return articleID, attachment, err
		},
		relations: func(a *articles.Article) []articles.Attachment { return a.Attachments },
		assign:    func(a *articles.Article, rels []articles.Attachment) { a.Attachments = rels },
		insertEntity: func(tx *sqlx.Tx, rel articles.Attachment) error {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO attachments (attachment_id, url, mime_type, size_bytes)
				VALUES (?, ?, ?, ?)
			`, rel.AttachmentID, rel.URL, rel.MimeType, rel.SizeBytes)
			return err
		},
	}
}
