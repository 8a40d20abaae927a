package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedbase/app/api"
	"feedbase/app/articles"
	"feedbase/app/cfg"
	"feedbase/app/database"
	"feedbase/app/feed"
	"feedbase/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Feedbase server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", migrationVersion, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount(), "dir", appCfg.FeedsDir)

	// Storage worker: the only context that touches the database.
	worker := database.NewWorker(appCfg.StorageQueueSize)
	worker.Start()

	account := &articles.Account{ID: "local", Name: appCfg.AccountName}
	policy := articles.NewVisibilityPolicy(appCfg.ArticlesHideDays, appCfg.ArticlesKeepDays)
	stores := articles.Stores{
		Articles:    database.NewArticleRepository(db),
		Statuses:    database.NewStatusRepository(db),
		Authors:     database.NewAuthorsTable(db),
		Tags:        database.NewTagsTable(db),
		Attachments: database.NewAttachmentsTable(db),
	}
	service := articles.NewService(account, stores, worker, policy)
	service.Start()

	httpClient := &http.Client{Timeout: 60 * time.Second}
	feedParser := feed.NewParser()
	extractor := feed.NewContentExtractor()

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(configCache, httpClient, feedParser, extractor, service,
		appCfg.UserAgent, time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()

	newRefreshTask := func(config *feed.Config) tasks.Task {
		return tasks.NewRefreshFeedTask(config, httpClient, feedParser, service, configCache, appCfg.UserAgent)
	}
	handler := api.NewHandler(configCache, service, scheduler, newRefreshTask)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Shutdown order follows the data flow: no new tasks, then no new
	// coordinating work, then drain the storage queue.
	scheduler.Stop()
	service.Stop()
	worker.Stop()

	slog.Info("Feedbase server shutdown complete")
}
