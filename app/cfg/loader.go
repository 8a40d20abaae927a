package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./feedbase.db" description:"Path to the SQLite database file"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	AccountName       string `long:"account-name" env:"ACCOUNT_NAME" default:"Local" description:"Name of the owning account"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	StorageQueueSize  int    `long:"storage-queue-size" env:"STORAGE_QUEUE_SIZE" default:"256" description:"Capacity of the storage worker job queue"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed refreshing"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Visibility windows
	ArticlesHideDays int `long:"articles-hide-days" env:"ARTICLES_HIDE_DAYS" default:"30" description:"Days after which non-starred articles are hidden from queries"`
	ArticlesKeepDays int `long:"articles-keep-days" env:"ARTICLES_KEEP_DAYS" default:"90" description:"Days after which non-starred articles are dropped from storage"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Feedbase/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.ArticlesHideDays <= 0 || raw.ArticlesKeepDays <= raw.ArticlesHideDays {
		return nil, fmt.Errorf("articles-keep-days (%d) must be greater than articles-hide-days (%d), both positive",
			raw.ArticlesKeepDays, raw.ArticlesHideDays)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		AccountName:       raw.AccountName,
		SchedulerInterval: raw.SchedulerInterval,
		StorageQueueSize:  raw.StorageQueueSize,
		WorkerCount:       raw.WorkerCount,
		APIAccessKey:      raw.APIAccessKey,
		ArticlesHideDays:  raw.ArticlesHideDays,
		ArticlesKeepDays:  raw.ArticlesKeepDays,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
