package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Drivers selectable with WithDriver: "sqlite3" needs cgo, "sqlite" is pure Go.
	_ "github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const (
	// DriverCGO is mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPure is modernc.org/sqlite.
	DriverPure = "sqlite"
)

type config struct {
	driver      string
	busyTimeout int
	mkdirAll    bool
}

func defaults() config {
	return config{
		driver:      DriverCGO,
		busyTimeout: 10_000,
	}
}

// Option customises Open.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "sqlite3".
func WithDriver(name string) Option {
	return func(c *config) {
		if name != "" {
			c.driver = name
		}
	}
}

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

func openDB(path string, cfg config) (*sql.DB, error) {
	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	// One connection keeps the pragmas below in effect for every statement
	// and makes ":memory:" databases usable.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	return db, nil
}

// busyAttempts bounds how often a write is tried while another process
// holds the database lock.
const busyAttempts = 3

// IsBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED from either
// driver, which happens when another chaosdl process holds the database.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var pure *sqlite.Error
	if errors.As(err, &pure) {
		switch pure.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return true
		}
		return false
	}
	// mattn/go-sqlite3 errors only exist in cgo builds; match on the message.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// withBusyRetry calls write until it succeeds, fails with a non-busy error,
// or busyAttempts is reached. Attempt n waits n*100ms before the next one.
func withBusyRetry(ctx context.Context, write func() error) error {
	for attempt := 1; ; attempt++ {
		err := write()
		if err == nil || !IsBusy(err) || attempt == busyAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ledger: waiting for lock: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
}

// inTx runs fn in one transaction, retried as a whole while the database is busy.
func (l *Ledger) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return withBusyRetry(ctx, func() error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// execWrite runs one statement and returns its affected row count.
func (l *Ledger) execWrite(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := withBusyRetry(ctx, func() error {
		res, err := l.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
