package api

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"feedbase/app/articles"
	"feedbase/app/cfg"
	"feedbase/app/feed"
	"feedbase/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, service ArticleService,
	scheduler tasks.SchedulerInterface, newRefreshTask func(*feed.Config) tasks.Task) *Handler {
	return &Handler{
		configCache:    configCache,
		service:        service,
		scheduler:      scheduler,
		newRefreshTask: newRefreshTask,
	}
}

// ListFeeds returns every configured feed with its last-parsed metadata.
// Metadata fields stay empty until the feed's first successful refresh.
func (h *Handler) ListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]feedResponse, 0, len(configs))
	for name, config := range configs {
		resp := feedResponse{
			FeedID:  name,
			URL:     config.URL,
			Enabled: config.Settings.Enabled,
		}
		if metadata, ok := h.configCache.GetMetadata(name); ok {
			resp.Title = metadata.Title
			resp.Link = metadata.Link
			resp.Description = metadata.Description
			resp.ImageURL = metadata.ImageURL
			resp.Language = metadata.Language
			resp.PublishedAt = metadata.FeedPublishedAt
		}
		feeds = append(feeds, resp)
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].FeedID < feeds[j].FeedID })

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"count": len(feeds),
	})
}

// GetFeedArticles returns the displayed articles for one feed.
func (h *Handler) GetFeedArticles(c *gin.Context) {
	config, ok := h.feedConfig(c)
	if !ok {
		return
	}

	arts, err := h.service.FetchArticles(config.Name)
	if err != nil {
		slog.Error("Database error", "operation", "fetch_articles", "feed", config.Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if config.Settings.MaxItems > 0 && len(arts) > config.Settings.MaxItems {
		arts = arts[:config.Settings.MaxItems]
	}

	c.JSON(http.StatusOK, gin.H{
		"feed_id":  config.Name,
		"articles": toArticleResponses(arts),
	})
}

// GetFeedUnreadArticles returns the unread displayed articles for one feed.
func (h *Handler) GetFeedUnreadArticles(c *gin.Context) {
	config, ok := h.feedConfig(c)
	if !ok {
		return
	}

	arts, err := h.service.FetchUnreadArticles([]string{config.Name})
	if err != nil {
		slog.Error("Database error", "operation", "fetch_unread", "feed", config.Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed_id":  config.Name,
		"articles": toArticleResponses(arts),
	})
}

// GetUnreadCounts returns per-feed unread counts across all configured feeds.
func (h *Handler) GetUnreadCounts(c *gin.Context) {
	feedIDs := h.configCache.FeedIDs()

	type result struct {
		counts map[string]int
		err    error
	}
	resultCh := make(chan result, 1)
	h.service.FetchUnreadCounts(feedIDs, func(counts map[string]int, err error) {
		resultCh <- result{counts: counts, err: err}
	})

	res := <-resultCh
	if res.err != nil {
		slog.Error("Database error", "operation", "unread_counts", "error", res.err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_counts": res.counts})
}

// MarkArticles sets one status flag on a set of articles.
func (h *Handler) MarkArticles(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flag := articles.Flag(req.Flag)
	if !flag.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown flag: " + req.Flag})
		return
	}

	if err := h.service.MarkByIDs(req.ArticleIDs, flag, req.Value); err != nil {
		slog.Error("Failed to mark articles", "flag", req.Flag, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"marked": len(req.ArticleIDs),
		"flag":   req.Flag,
		"value":  req.Value,
	})
}

// RefreshFeed enqueues an immediate refresh for one feed.
func (h *Handler) RefreshFeed(c *gin.Context) {
	config, ok := h.feedConfig(c)
	if !ok {
		return
	}

	if err := h.scheduler.EnqueueTask(h.newRefreshTask(config)); err != nil {
		slog.Error("Failed to enqueue refresh", "feed", config.Name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"feed_id": config.Name, "status": "queued"})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": cfg.GetVersion(),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	total, err := h.service.CountArticles()
	if err != nil {
		slog.Error("Database error", "operation", "count_articles", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds":    h.configCache.GetConfigCount(),
		"articles": total,
	})
}

func (h *Handler) feedConfig(c *gin.Context) (*feed.Config, bool) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return nil, false
	}

	config, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.Status(http.StatusNotFound)
		return nil, false
	}
	return config, true
}

func toArticleResponses(arts []*articles.Article) []articleResponse {
	responses := make([]articleResponse, 0, len(arts))
	for _, a := range arts {
		responses = append(responses, toArticleResponse(a))
	}
	return responses
}
