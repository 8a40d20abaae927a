package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"feedbase/app/feed"
)

const extractionBatchSize = 5

// ExtractContentTask pulls readable full content for articles that only
// carried a summary in the feed, a batch per run.
type ExtractContentTask struct {
	base
	config     *feed.Config
	httpClient *http.Client
	extractor  *feed.ContentExtractor
	service    ArticleService
	userAgent  string
}

func NewExtractContentTask(config *feed.Config, httpClient *http.Client, extractor *feed.ContentExtractor, service ArticleService, userAgent string) *ExtractContentTask {
	return &ExtractContentTask{
		base:       newBase(TypeExtractContent, config.Name),
		config:     config,
		httpClient: httpClient,
		extractor:  extractor,
		service:    service,
		userAgent:  userAgent,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	candidates, err := t.service.ArticlesNeedingContent(t.feedID, extractionBatchSize)
	if err != nil {
		return fmt.Errorf("failed to get extraction candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	extracted := 0
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := t.fetchPage(ctx, candidate.Link)
		if err != nil {
			slog.Warn("Failed to fetch article page", "feed", t.feedID, "link", candidate.Link, "error", err)
			continue
		}

		content, err := t.extractor.Run(data)
		if err != nil {
			slog.Warn("Failed to extract content", "feed", t.feedID, "link", candidate.Link, "error", err)
			continue
		}

		t.service.SaveExtractedContent(candidate.ArticleID, content)
		extracted++
	}

	slog.Info("Task completed",
		"type", "ExtractContent",
		"feed", t.feedID,
		"duration", t.Duration(),
		"candidates", len(candidates),
		"extracted", extracted)

	return nil
}

func (t *ExtractContentTask) fetchPage(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.config.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
