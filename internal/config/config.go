// Package config loads chaosdl settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/ledger"
)

// Config holds every tunable. Zero values are replaced by defaults.
type Config struct {
	// Index is the program index: an http(s) URL or a local JSON file.
	Index string `yaml:"index"`
	// IndexCache, when set, is where a fetched index is saved.
	IndexCache string `yaml:"index_cache"`
	// OutputDir holds operation directories, merged files and exports.
	OutputDir string `yaml:"output_dir"`
	DBPath    string `yaml:"db_path"`
	DBDriver  string `yaml:"db_driver"`

	Workers        int           `yaml:"workers"`
	UserAgent      string        `yaml:"user_agent"`
	CatalogTimeout time.Duration `yaml:"catalog_timeout"`
	ArchiveTimeout time.Duration `yaml:"archive_timeout"`
	// RateLimit is archive requests per second; 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.Index == "" {
		c.Index = catalog.DefaultIndexURL
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.DBPath == "" {
		c.DBPath = "chaos.db"
	}
	if c.DBDriver == "" {
		c.DBDriver = ledger.DriverCGO
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; chaosdl/1.0)"
	}
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = 30 * time.Second
	}
	if c.ArchiveTimeout <= 0 {
		c.ArchiveTimeout = 2 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Load reads path (when non-empty) over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	c.defaults()
	return c, c.Validate()
}

// Validate checks values that defaults cannot fix.
func (c Config) Validate() error {
	switch c.DBDriver {
	case ledger.DriverCGO, ledger.DriverPure:
	default:
		return fmt.Errorf("config: db_driver %q (want %s or %s)", c.DBDriver, ledger.DriverCGO, ledger.DriverPure)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("config: log_level %q: %w", s, err)
	}
	return level, nil
}
