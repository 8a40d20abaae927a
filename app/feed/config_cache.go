package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache is the feed registry: per-feed YAML files in a directory,
// loaded once and served from memory. The config name (filename without
// extension) is the feedID.
type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	metadata map[string]Metadata
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
		metadata: make(map[string]Metadata),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		feedName := fileName[:len(fileName)-len(".yml")]

		config, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Feed configuration loaded", "feed", feedName, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := filepath.Join(cc.feedsDir, feedName+".yml")
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = feedName

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configs[k] = v
	}
	return configs
}

// SetMetadata records the feed-level output of the latest successful parse.
// Feeds have no database rows, so the registry is where parse-time metadata
// lives between refreshes.
func (cc *ConfigCache) SetMetadata(feedName string, metadata Metadata) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.metadata[feedName] = metadata
}

// GetMetadata returns the last recorded metadata for a feed; ok is false
// until the feed has been refreshed at least once.
func (cc *ConfigCache) GetMetadata(feedName string) (Metadata, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	metadata, ok := cc.metadata[feedName]
	return metadata, ok
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

// FeedIDs returns every configured feedID.
func (cc *ConfigCache) FeedIDs() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	ids := make([]string, 0, len(cc.cache))
	for k := range cc.cache {
		ids = append(ids, k)
	}
	return ids
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = 3600
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 100
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("feed name is required")
	}
	if config.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	if config.Settings.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval cannot be negative")
	}
	if config.Settings.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative")
	}
	if config.Settings.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}
