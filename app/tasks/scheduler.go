package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"feedbase/app/feed"
)

var _ SchedulerInterface = (*Scheduler)(nil)

const purgeInterval = 24 * time.Hour

// Scheduler owns the background worker pool driving feed refreshes, content
// extraction and retention purges. The scheduling loop is the only goroutine
// touching the per-feed next-fetch bookkeeping.
type Scheduler struct {
	configCache *feed.ConfigCache
	httpClient  *http.Client
	parser      *feed.Parser
	extractor   *feed.ContentExtractor
	service     ArticleService
	userAgent   string
	interval    time.Duration
	workerCount int

	nextFetch map[string]time.Time
	lastPurge time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan Task
}

func NewScheduler(configCache *feed.ConfigCache, httpClient *http.Client, parser *feed.Parser,
	extractor *feed.ContentExtractor, service ArticleService,
	userAgent string, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		httpClient:  httpClient,
		parser:      parser,
		extractor:   extractor,
		service:     service,
		userAgent:   userAgent,
		interval:    interval,
		workerCount: workerCount,
		nextFetch:   make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan Task, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task Task) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueDueTasks runs on the scheduling goroutine only.
func (s *Scheduler) enqueueDueTasks() {
	now := time.Now()

	if now.Sub(s.lastPurge) >= purgeInterval {
		if err := s.EnqueueTask(NewPurgeArticlesTask(s.service)); err != nil {
			slog.Warn("Failed to enqueue PurgeArticlesTask", "error", err)
		} else {
			s.lastPurge = now
		}
	}

	configs := s.configCache.GetEnabledConfigs()
	if len(configs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	for _, config := range configs {
		if due, ok := s.nextFetch[config.Name]; ok && due.After(now) {
			continue
		}

		task := NewRefreshFeedTask(config, s.httpClient, s.parser, s.service, s.configCache, s.userAgent)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue RefreshFeedTask", "feed", config.Name, "error", err)
			continue
		}
		s.nextFetch[config.Name] = now.Add(time.Duration(config.Settings.RefreshInterval) * time.Second)

		if config.Settings.ExtractContent {
			extractTask := NewExtractContentTask(config, s.httpClient, s.extractor, s.service, s.userAgent)
			if err := s.EnqueueTask(extractTask); err != nil {
				slog.Warn("Failed to enqueue ExtractContentTask", "feed", config.Name, "error", err)
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task Task) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.Type()), "id", task.ID(), "retry_count", task.RetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.Type()), "id", task.ID(), "retry_count", task.RetryCount(), "max_retries", task.MaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.RetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.Type()), "feed", task.FeedID(), "retry_count", task.RetryCount(), "max_retries", task.MaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.Type()), "id", task.ID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.Type()), "id", task.ID(), "retry_count", task.RetryCount(), "error", retryErr)
			}
		}
	}()
}
