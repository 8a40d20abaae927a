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

// RefreshFeedTask fetches one feed over HTTP, parses it and hands the parsed
// items to the article engine's merge entrypoint.
type RefreshFeedTask struct {
	base
	config     *feed.Config
	httpClient *http.Client
	parser     *feed.Parser
	service    ArticleService
	registry   *feed.ConfigCache
	userAgent  string
}

func NewRefreshFeedTask(config *feed.Config, httpClient *http.Client, parser *feed.Parser, service ArticleService, registry *feed.ConfigCache, userAgent string) *RefreshFeedTask {
	return &RefreshFeedTask{
		base:       newBase(TypeRefreshFeed, config.Name),
		config:     config,
		httpClient: httpClient,
		parser:     parser,
		service:    service,
		registry:   registry,
		userAgent:  userAgent,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.config.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.feedID)
		return nil
	}

	data, err := t.fetchFeed(ctx, t.config.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, items, err := t.parser.Run(t.feedID, data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	t.registry.SetMetadata(t.feedID, *metadata)

	// Completion fires once classification is done and writes are queued;
	// wait for it so task duration covers the whole merge hand-off.
	done := make(chan struct{})
	t.service.Update(t.feedID, items, func() {
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.feedID,
		"title", metadata.Title,
		"duration", t.Duration(),
		"items", len(items))

	return nil
}

func (t *RefreshFeedTask) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.config.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
