package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen      string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		AdminSecret string        `yaml:"admin_secret" json:"admin_secret" jsonschema:"description=Shared secret for admin mutations (empty disables the guard)"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:casafeed.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		UpdateInterval int `yaml:"update_interval" json:"update_interval" jsonschema:"default=30,description=Aggregation interval in minutes"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	Aggregator AggregatorConfig `yaml:"aggregator" json:"aggregator" jsonschema:"description=Feed aggregation configuration"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds" jsonschema:"description=Configured RSS sources"`
}

// AggregatorConfig holds feed aggregation settings
type AggregatorConfig struct {
	FetchTimeout    time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=30s,description=Per-source fetch timeout"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=CasaFeed RSS Aggregator 1.0,description=User agent for feed requests"`
	MaxItemsPerFeed int           `yaml:"max_items_per_feed" json:"max_items_per_feed" jsonschema:"default=20,description=Cap on parsed items per source per pass"`
	ResultLimit     int           `yaml:"result_limit" json:"result_limit" jsonschema:"default=8,description=Maximum items in an aggregation result"`
	MinFreshItems   int           `yaml:"min_fresh_items" json:"min_fresh_items" jsonschema:"default=3,description=Minimum fresh items before curated fallback kicks in"`
	CacheTTL        time.Duration `yaml:"cache_ttl" json:"cache_ttl" jsonschema:"default=5m,description=Read-path cache TTL"`
}

// FeedConfig describes one RSS source seeded into the database at startup
type FeedConfig struct {
	Name     string `yaml:"name" json:"name" jsonschema:"required,description=Display name of the source"`
	URL      string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Category string `yaml:"category" json:"category" jsonschema:"default=market,description=Category tag (market, luxury, investment)"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:casafeed.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for schedule
	if cfg.Schedule.UpdateInterval == 0 {
		cfg.Schedule.UpdateInterval = 30
	}

	// set defaults for aggregator
	if cfg.Aggregator.FetchTimeout == 0 {
		cfg.Aggregator.FetchTimeout = 30 * time.Second
	}
	if cfg.Aggregator.UserAgent == "" {
		cfg.Aggregator.UserAgent = "CasaFeed RSS Aggregator 1.0"
	}
	if cfg.Aggregator.MaxItemsPerFeed == 0 {
		cfg.Aggregator.MaxItemsPerFeed = 20
	}
	if cfg.Aggregator.ResultLimit == 0 {
		cfg.Aggregator.ResultLimit = 8
	}
	if cfg.Aggregator.MinFreshItems == 0 {
		cfg.Aggregator.MinFreshItems = 3
	}
	if cfg.Aggregator.CacheTTL == 0 {
		cfg.Aggregator.CacheTTL = 5 * time.Minute
	}

	// default feed categories
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Category == "" {
			cfg.Feeds[i].Category = "market"
		}
	}

	return &cfg, nil
}

// GetServerConfig returns server listen address and timeout
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
