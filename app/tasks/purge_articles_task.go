package tasks

import (
	"context"
	"log/slog"
)

// PurgeArticlesTask drops stored articles past the retention boundary.
// Statuses stay behind so purged articles never come back as new.
type PurgeArticlesTask struct {
	base
	service ArticleService
}

func NewPurgeArticlesTask(service ArticleService) *PurgeArticlesTask {
	return &PurgeArticlesTask{
		base:    newBase(TypePurgeArticles, ""),
		service: service,
	}
}

func (t *PurgeArticlesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan struct{})
	var purged int64
	var purgeErr error
	t.service.PurgeOldArticles(func(count int64, err error) {
		purged = count
		purgeErr = err
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if purgeErr != nil {
		return purgeErr
	}

	slog.Info("Task completed",
		"type", "PurgeArticles",
		"duration", t.Duration(),
		"purged", purged)

	return nil
}
