// Package archive downloads a program's subdomain archive and unpacks it into
// the program's directory.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/layout"
)

// Config configures a Fetcher.
type Config struct {
	Timeout   time.Duration // per archive, including the body. Default: 2m.
	UserAgent string
	// RateLimit caps archive requests per second across all workers.
	// Zero or negative disables the limit.
	RateLimit float64
	Burst     int
	MaxBytes  int64 // Default: 1 GiB.
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; chaosdl/1.0)"
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 1 << 30
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RetrievalError covers everything up to a complete archive on disk:
// directory creation, transport failures, timeouts and non-2xx responses.
type RetrievalError struct {
	Program    string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.Program, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ExtractionError means the archive was downloaded but could not be unpacked.
type ExtractionError struct {
	Program string
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Program, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Fetcher is safe for concurrent use by multiple workers.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	config  Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		config:  cfg,
	}
}

// Fetch downloads p's archive into root/<program>, extracts it there and
// removes the archive. It returns the program directory.
func (f *Fetcher) Fetch(ctx context.Context, p catalog.Program, root string) (string, error) {
	dir := layout.ProgramDir(root, p.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &RetrievalError{Program: p.Name, URL: p.URL, Err: fmt.Errorf("mkdir: %w", err)}
	}

	archivePath := filepath.Join(dir, FileName(p.URL))
	if err := f.download(ctx, p, archivePath); err != nil {
		return "", err
	}

	n, err := Extract(archivePath, dir)
	if err != nil {
		return "", &ExtractionError{Program: p.Name, Archive: archivePath, Err: err}
	}
	if err := os.Remove(archivePath); err != nil {
		f.config.Logger.Warn("archive cleanup failed", "program", p.Name, "error", err)
	}
	f.config.Logger.Debug("archive extracted", "program", p.Name, "files", n, "dir", dir)
	return dir, nil
}

func (f *Fetcher) download(ctx context.Context, p catalog.Program, dst string) error {
	fail := func(status int, err error) error {
		return &RetrievalError{Program: p.Name, URL: p.URL, StatusCode: status, Err: err}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return fail(0, fmt.Errorf("rate limit: %w", err))
	}

	target := EncodePath(p.URL)
	if _, err := url.Parse(target); err != nil {
		return fail(0, fmt.Errorf("parse url: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(0, fmt.Errorf("new request: %w", err))
	}
	// Requests with an empty or default user agent are answered with 403.
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("http get: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode))
	}

	out, err := os.Create(dst)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("create archive: %w", err))
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("write archive: %w", err))
	}
	if n > f.config.MaxBytes {
		return fail(resp.StatusCode, fmt.Errorf("archive larger than %d bytes", f.config.MaxBytes))
	}
	return nil
}
