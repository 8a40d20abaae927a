package tasks

import (
	"feedbase/app/articles"
)

// ArticleService is the slice of the article engine the background tasks
// drive.
type ArticleService interface {
	Update(feedID string, items map[string]articles.ParsedItem, completion func())
	PurgeOldArticles(completion func(int64, error))
	ArticlesNeedingContent(feedID string, limit int) ([]articles.ContentCandidate, error)
	SaveExtractedContent(articleID, content string)
}

// Scheduler is the surface the rest of the application uses to manage
// background task processing.
type SchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task Task) error
}
