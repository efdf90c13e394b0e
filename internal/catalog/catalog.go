// Package catalog loads the Chaos bug-bounty program index.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultIndexURL is the public program index published by ProjectDiscovery.
const DefaultIndexURL = "https://chaos-data.projectdiscovery.io/index.json"

// Program is one entry of the index.
type Program struct {
	Name        string `json:"name"`
	URL         string `json:"URL"`
	Platform    string `json:"platform"`
	Bounty      bool   `json:"bounty"`
	Change      int    `json:"change"`
	IsNew       bool   `json:"is_new"`
	Count       int    `json:"count"`
	LastUpdated string `json:"last_updated"`
	// Swag is nil when the index omits the key. Any value, even false,
	// marks a program that lists swag terms.
	Swag *bool `json:"swag,omitempty"`
}

// SelfHosted reports whether the program runs its own bounty (no platform).
func (p Program) SelfHosted() bool { return p.Platform == "" }

// Config configures Fetch.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = DefaultIndexURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; chaosdl/1.0)"
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
}

// FetchError means the index could not be retrieved or parsed. Nothing can be
// selected without the index, so callers treat it as fatal.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch retrieves the index over HTTP.
func Fetch(ctx context.Context, cfg Config) ([]Program, error) {
	cfg.defaults()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, &FetchError{Source: cfg.URL, Err: fmt.Errorf("new request: %w", err)}
	}
	// The CDN answers 403 to the default Go user agent.
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: cfg.URL, Err: fmt.Errorf("http get: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Source: cfg.URL, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	programs, err := decode(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: cfg.URL, Err: err}
	}
	return programs, nil
}

// Load reads an index previously saved to disk.
func Load(path string) ([]Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Source: path, Err: err}
	}
	defer f.Close()

	programs, err := decode(f)
	if err != nil {
		return nil, &FetchError{Source: path, Err: err}
	}
	return programs, nil
}

// Save writes programs as an index file that Load accepts.
func Save(path string, programs []Program) error {
	data, err := json.Marshal(programs)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Open fetches source when it is an http(s) URL and loads it from disk otherwise.
func Open(ctx context.Context, source string, cfg Config) ([]Program, error) {
	if source == "" || strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		cfg.URL = source
		return Fetch(ctx, cfg)
	}
	return Load(source)
}

// Lookup returns the first program named exactly name.
func Lookup(programs []Program, name string) (Program, bool) {
	for _, p := range programs {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

func decode(r io.Reader) ([]Program, error) {
	var programs []Program
	if err := json.NewDecoder(r).Decode(&programs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return programs, nil
}
