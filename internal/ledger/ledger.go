// Package ledger records which subdomains have already been seen for each
// program. It is a de-duplication ledger: rows are inserted once and never
// updated or deleted.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	platform     TEXT,
	offer_bounty BOOLEAN,
	last_update  DATE
);
CREATE TABLE IF NOT EXISTS subdomains (
	id         INTEGER PRIMARY KEY,
	subdomain  TEXT NOT NULL,
	program_id INTEGER NOT NULL REFERENCES programs(id),
	UNIQUE(subdomain, program_id)
);
CREATE INDEX IF NOT EXISTS idx_subdomains_program ON subdomains(program_id);
`

const insertSubdomain = `INSERT OR IGNORE INTO subdomains (subdomain, program_id) VALUES (?, ?)`

// ErrNotFound is returned when a program is not in the ledger.
var ErrNotFound = errors.New("ledger: program not found")

// WriteError wraps a storage failure on insert.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("ledger %s: %v", e.Op, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Program is a row of the programs table.
type Program struct {
	ID         int64
	Name       string
	Platform   string
	Bounty     bool
	LastUpdate string // YYYY-MM-DD of the first insert
}

// BatchResult reports the outcome of RecordBatch.
type BatchResult struct {
	Inserted []string
	Failed   int
	LastErr  error
}

// Ledger is safe for concurrent use. Writes are serialized by a mutex.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string, opts ...Option) (*Ledger, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	db, err := openDB(path, cfg)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, logger: slog.Default(), now: time.Now}, nil
}

// SetLogger replaces the logger used for debug output.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// EnsureProgram inserts the program if its name is unknown and returns its id.
// An existing row is left untouched, including its date.
func (l *Ledger) EnsureProgram(ctx context.Context, name, platform string, bounty bool) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.execWrite(ctx, `
		INSERT OR IGNORE INTO programs (name, platform, offer_bounty, last_update)
		VALUES (?, ?, ?, ?)`,
		name, platform, bounty, l.now().Format(time.DateOnly))
	if err != nil {
		return 0, &WriteError{Op: "ensure program", Err: err}
	}

	var id int64
	err = l.db.QueryRowContext(ctx, `SELECT id FROM programs WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, &WriteError{Op: "ensure program", Err: err}
	}
	return id, nil
}

// RecordSubdomain inserts (subdomain, programID) and reports whether the pair
// was new.
func (l *Ledger) RecordSubdomain(ctx context.Context, programID int64, subdomain string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.execWrite(ctx, insertSubdomain, subdomain, programID)
	if err != nil {
		return false, &WriteError{Op: "record subdomain", Err: err}
	}
	return n > 0, nil
}

// RecordBatch records many subdomains for one program in a single
// transaction. A failing row is counted in Failed and does not stop the batch;
// a failing transaction marks every row failed and returns a *WriteError.
func (l *Ledger) RecordBatch(ctx context.Context, programID int64, subdomains []string) (BatchResult, error) {
	if len(subdomains) == 0 {
		return BatchResult{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var res BatchResult
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		res = BatchResult{}
		stmt, err := tx.PrepareContext(ctx, insertSubdomain)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range subdomains {
			r, err := stmt.ExecContext(ctx, s, programID)
			if err != nil {
				if IsBusy(err) || ctx.Err() != nil {
					return err
				}
				res.Failed++
				res.LastErr = err
				continue
			}
			if n, err := r.RowsAffected(); err == nil && n > 0 {
				res.Inserted = append(res.Inserted, s)
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{Failed: len(subdomains), LastErr: err}, &WriteError{Op: "record batch", Err: err}
	}
	if res.Failed > 0 {
		l.logger.Warn("ledger rows rejected", "program_id", programID, "failed", res.Failed, "error", res.LastErr)
	}
	return res, nil
}

// ProgramID looks up a program by name.
func (l *Ledger) ProgramID(ctx context.Context, name string) (int64, error) {
	p, err := l.Program(ctx, name)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Program returns the ledger row for name.
func (l *Ledger) Program(ctx context.Context, name string) (Program, error) {
	var p Program
	var platform sql.NullString
	var day sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT id, name, platform, offer_bounty, CAST(last_update AS TEXT)
		FROM programs WHERE name = ?`, name).Scan(&p.ID, &p.Name, &platform, &p.Bounty, &day)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, ErrNotFound
	}
	if err != nil {
		return Program{}, fmt.Errorf("ledger: program %q: %w", name, err)
	}
	p.Platform = platform.String
	p.LastUpdate = day.String
	return p, nil
}

// Programs lists every program name in the ledger, sorted.
func (l *Ledger) Programs(ctx context.Context) ([]string, error) {
	return l.strings(ctx, `SELECT name FROM programs ORDER BY name`)
}

// ListSubdomains returns every subdomain recorded for programID. Order is not
// guaranteed.
func (l *Ledger) ListSubdomains(ctx context.Context, programID int64) ([]string, error) {
	return l.strings(ctx, `SELECT subdomain FROM subdomains WHERE program_id = ?`, programID)
}

// CountSubdomains returns how many subdomains are recorded for programID.
func (l *Ledger) CountSubdomains(ctx context.Context, programID int64) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subdomains WHERE program_id = ?`, programID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return n, nil
}

func (l *Ledger) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
