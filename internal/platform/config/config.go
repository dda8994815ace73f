// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix; command-line flags bound to the same
// keys take precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Run modes accepted by LEARN_RUN_MODE.
const (
	ModeAll        = "all"
	ModeRepair     = "repair"
	ModeImages     = "images"
	ModeSynthesize = "synthesize"
)

// Config holds all application configuration.
type Config struct {
	Courses     CoursesConfig
	Placeholder PlaceholderConfig
	Run         RunConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Report      ReportConfig
	Log         LogConfig
}

// CoursesConfig locates the course tree and the classification catalog.
type CoursesConfig struct {
	Root         string
	TopicPattern string
	CatalogPath  string // empty means the embedded catalog
}

// PlaceholderConfig holds the sentinel that marks media as not real.
type PlaceholderConfig struct {
	ID string
}

// RunConfig controls how an enrichment run behaves.
type RunConfig struct {
	Mode    string
	Workers int
	DryRun  bool
}

// DatabaseConfig holds PostgreSQL connection settings. Run history is kept in
// memory when URL is empty.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. No run lock is taken
// when URL is empty.
type CacheConfig struct {
	URL        string
	LockTTLSec int
}

// ReportConfig holds run report settings.
type ReportConfig struct {
	Path string // .xlsx export path; empty disables the export
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// New returns a viper instance reading LEARN_* variables with every default set.
// Flags can be bound to its keys before calling LoadFrom.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("courses.root", "./courses")
	v.SetDefault("courses.topic_pattern", "topic_*.json")
	v.SetDefault("courses.catalog_path", "")
	v.SetDefault("placeholder.id", "PLACEHOLDER_ID")
	v.SetDefault("run.mode", ModeAll)
	v.SetDefault("run.workers", 1)
	v.SetDefault("run.dry_run", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("cache.url", "")
	v.SetDefault("cache.lock_ttl", 900)
	v.SetDefault("report.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	return v
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	return LoadFrom(New())
}

// LoadFrom builds a Config from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Courses: CoursesConfig{
			Root:         v.GetString("courses.root"),
			TopicPattern: v.GetString("courses.topic_pattern"),
			CatalogPath:  v.GetString("courses.catalog_path"),
		},
		Placeholder: PlaceholderConfig{
			ID: v.GetString("placeholder.id"),
		},
		Run: RunConfig{
			Mode:    strings.ToLower(v.GetString("run.mode")),
			Workers: v.GetInt("run.workers"),
			DryRun:  v.GetBool("run.dry_run"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			MaxConns: v.GetInt("database.max_conns"),
			MinConns: v.GetInt("database.min_conns"),
		},
		Cache: CacheConfig{
			URL:        v.GetString("cache.url"),
			LockTTLSec: v.GetInt("cache.lock_ttl"),
		},
		Report: ReportConfig{
			Path: v.GetString("report.path"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Courses.Root == "" {
		return fmt.Errorf("LEARN_COURSES_ROOT is required")
	}

	if c.Placeholder.ID == "" {
		return fmt.Errorf("LEARN_PLACEHOLDER_ID must not be empty")
	}

	switch c.Run.Mode {
	case ModeAll, ModeRepair, ModeImages, ModeSynthesize:
	default:
		return fmt.Errorf("LEARN_RUN_MODE must be one of all, repair, images, synthesize, got %q", c.Run.Mode)
	}

	if c.Run.Workers < 1 {
		return fmt.Errorf("LEARN_RUN_WORKERS must be at least 1, got %d", c.Run.Workers)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasDatabase returns true if run history should go to PostgreSQL.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasCache returns true if a run lock should be taken in Redis.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}
