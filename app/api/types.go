package api

import (
	"time"

	"feedbase/app/articles"
	"feedbase/app/feed"
	"feedbase/app/tasks"
)

// ArticleService is the slice of the article engine the HTTP surface uses.
type ArticleService interface {
	FetchArticles(feedID string) ([]*articles.Article, error)
	FetchUnreadArticles(feedIDs []string) ([]*articles.Article, error)
	FetchUnreadCounts(feedIDs []string, completion func(map[string]int, error))
	MarkByIDs(articleIDs []string, flag articles.Flag, value bool) error
	CountArticles() (int, error)
}

var _ ArticleService = (*articles.Service)(nil)

type Handler struct {
	configCache *feed.ConfigCache
	service     ArticleService
	scheduler   tasks.SchedulerInterface
	// newRefreshTask builds a refresh task for one feed; injected so the
	// handler does not carry the fetch/parse dependencies itself.
	newRefreshTask func(*feed.Config) tasks.Task
}

type feedResponse struct {
	FeedID      string     `json:"feed_id"`
	URL         string     `json:"url"`
	Enabled     bool       `json:"enabled"`
	Title       string     `json:"title,omitempty"`
	Link        string     `json:"link,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Language    string     `json:"language,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type articleResponse struct {
	ArticleID   string               `json:"article_id"`
	FeedID      string               `json:"feed_id"`
	Title       string               `json:"title"`
	Link        string               `json:"link"`
	Summary     string               `json:"summary,omitempty"`
	Content     string               `json:"content,omitempty"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
	Authors     []authorResponse     `json:"authors,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	Attachments []attachmentResponse `json:"attachments,omitempty"`
	Read        bool                 `json:"read"`
	Starred     bool                 `json:"starred"`
	DateArrived time.Time            `json:"date_arrived"`
}

type authorResponse struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

type attachmentResponse struct {
	URL       string `json:"url"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type markRequest struct {
	ArticleIDs []string `json:"article_ids" binding:"required"`
	Flag       string   `json:"flag" binding:"required"`
	Value      bool     `json:"value"`
}

func toArticleResponse(a *articles.Article) articleResponse {
	resp := articleResponse{
		ArticleID:   a.ArticleID,
		FeedID:      a.FeedID,
		Title:       a.Title,
		Link:        a.Link,
		Summary:     a.Summary,
		Content:     a.Content,
		Read:        a.Status.Read,
		Starred:     a.Status.Starred,
		DateArrived: a.Status.DateArrived,
	}
	if !a.PublishedAt.IsZero() {
		publishedAt := a.PublishedAt
		resp.PublishedAt = &publishedAt
	}
	for _, author := range a.Authors {
		resp.Authors = append(resp.Authors, authorResponse{
			Name:  author.Name,
			Email: author.Email,
			URL:   author.URL,
		})
	}
	for _, tag := range a.Tags {
		resp.Tags = append(resp.Tags, string(tag))
	}
	for _, attachment := range a.Attachments {
		resp.Attachments = append(resp.Attachments, attachmentResponse{
			URL:       attachment.URL,
			MimeType:  attachment.MimeType,
			SizeBytes: attachment.SizeBytes,
		})
	}
	return resp
}
