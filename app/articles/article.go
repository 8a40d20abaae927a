package articles

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Related is implemented by every relation-kind entity (authors, tags,
// attachments). RelatedID is derived from the entity's content, so two
// entities with equal fields always share an ID.
type Related interface {
	RelatedID() string
}

type Author struct {
	AuthorID string `db:"author_id"`
	Name     string `db:"name"`
	Email    string `db:"email"`
	URL      string `db:"url"`
}

func NewAuthor(name, email, url string) Author {
	return Author{
		AuthorID: hashFields(name, email, url),
		Name:     name,
		Email:    email,
		URL:      url,
	}
}

func (a Author) RelatedID() string {
	return a.AuthorID
}

type Tag string

func (t Tag) RelatedID() string {
	return string(t)
}

type Attachment struct {
	AttachmentID string `db:"attachment_id"`
	URL          string `db:"url"`
	MimeType     string `db:"mime_type"`
	SizeBytes    int64  `db:"size_bytes"`
}

func NewAttachment(url, mimeType string, sizeBytes int64) Attachment {
	return Attachment{
		AttachmentID: hashFields(url, mimeType, fmt.Sprintf("%d", sizeBytes)),
		URL:          url,
		MimeType:     mimeType,
		SizeBytes:    sizeBytes,
	}
}

func (a Attachment) RelatedID() string {
	return a.AttachmentID
}

// Article is the single live representation of one logical article inside the
// coordinating context. Instances are uniqued through the IdentityCache and
// mutated only on the coordinating goroutine; everything crossing into the
// storage worker is a Snapshot.
type Article struct {
	ArticleID   string
	FeedID      string
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	PublishedAt time.Time

	Authors     []Author
	Tags        []Tag
	Attachments []Attachment

	// Never nil on a live article. A nil status is a programming error, not
	// a runtime condition.
	Status *Status
}

// ParsedItem is the ephemeral output of feed parsing, consumed once per merge
// cycle and never persisted directly.
type ParsedItem struct {
	ArticleID   string
	FeedID      string
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	PublishedAt time.Time

	Authors     []Author
	Tags        []Tag
	Attachments []Attachment
}

// MakeArticleID derives the stable article identity from the owning feed and
// the source-provided unique id.
func MakeArticleID(feedID, guid string) string {
	return hashFields(feedID, guid)
}

// NewArticle builds a live Article from a parsed item and its status.
func NewArticle(item ParsedItem, status *Status) *Article {
	if status == nil {
		panic(fmt.Sprintf("articles: NewArticle %q without status", item.ArticleID))
	}
	return &Article{
		ArticleID:   item.ArticleID,
		FeedID:      item.FeedID,
		GUID:        item.GUID,
		Title:       item.Title,
		Link:        item.Link,
		Summary:     item.Summary,
		Content:     item.Content,
		PublishedAt: item.PublishedAt,
		Authors:     item.Authors,
		Tags:        item.Tags,
		Attachments: item.Attachments,
		Status:      status,
	}
}

// Snapshot returns an independent copy safe to hand to the storage worker.
// The coordinating context may keep mutating the original; the copy shares no
// slices and carries its own status value.
func (a *Article) Snapshot() Article {
	snap := *a
	snap.Authors = append([]Author(nil), a.Authors...)
	snap.Tags = append([]Tag(nil), a.Tags...)
	snap.Attachments = append([]Attachment(nil), a.Attachments...)
	if a.Status != nil {
		status := *a.Status
		snap.Status = &status
	}
	return snap
}

func hashFields(fields ...string) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
