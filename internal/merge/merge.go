// Package merge concatenates a program's extracted subdomain lists into the
// operation's cumulative corpus and records each subdomain in the ledger.
package merge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/net/idna"

	"github.com/storbeck/chaosdl/internal/layout"
	"github.com/storbeck/chaosdl/internal/ledger"
)

// Recorder stores subdomains for a program and reports which were new.
type Recorder interface {
	RecordBatch(ctx context.Context, programID int64, subdomains []string) (ledger.BatchResult, error)
}

// Result describes one MergeAndRecord call.
type Result struct {
	Files      int // text files merged
	Lines      int // non-blank lines read
	Unique     int // distinct subdomains after normalization
	New        int // subdomains the ledger had not seen for this program
	Suppressed int // subdomains the ledger failed to store
}

// Merger is shared by all workers of one operation.
type Merger struct {
	merged *Sink
	fresh  *Sink
	rec    Recorder
	logger *slog.Logger
}

// New creates a Merger writing the raw corpus to merged and newly recorded
// subdomains to fresh.
func New(merged, fresh *Sink, rec Recorder, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{merged: merged, fresh: fresh, rec: rec, logger: logger}
}

// MergeAndRecord processes the text files directly inside root/<program>.
// Ledger failures are counted in Result.Suppressed; filesystem errors and
// cancellation are returned.
func (m *Merger) MergeAndRecord(ctx context.Context, root, program string, programID int64) (Result, error) {
	var res Result

	files, err := textFiles(layout.ProgramDir(root, program))
	if err != nil {
		return res, err
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	var candidates []string
	for _, path := range files {
		if err := m.appendRaw(path); err != nil {
			return res, fmt.Errorf("merge %s: %w", filepath.Base(path), err)
		}
		n, err := scanLines(path, func(line string) {
			sub := Normalize(line)
			if sub != "" && seen.Add(sub) {
				candidates = append(candidates, sub)
			}
		})
		res.Lines += n
		if err != nil {
			return res, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		res.Files++
	}
	res.Unique = len(candidates)
	if res.Files == 0 {
		m.logger.Warn("no text files at the top of the program directory", "program", program)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	batch, err := m.rec.RecordBatch(ctx, programID, candidates)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		m.logger.Warn("ledger batch failed", "program", program, "error", err)
	}
	res.Suppressed = batch.Failed
	res.New = len(batch.Inserted)

	if err := m.fresh.WriteLines(batch.Inserted); err != nil {
		return res, fmt.Errorf("write new subdomains: %w", err)
	}
	m.logger.Debug("merged", "program", program, "files", res.Files, "lines", res.Lines, "new", res.New)
	return res, nil
}

// appendRaw copies path verbatim to the cumulative file, adding a final
// newline when the file lacks one so the next file starts on its own line.
func (m *Merger) appendRaw(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return m.merged.Append(func(w io.Writer) error {
		tw := &tailWriter{w: w}
		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		if tw.n > 0 && tw.last != '\n' {
			_, err := io.WriteString(w, "\n")
			return err
		}
		return nil
	})
}

// Normalize canonicalizes a subdomain line: trimmed, lowercased, without a
// trailing root dot, internationalized labels in Punycode.
func Normalize(line string) string {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(line)), ".")
	if ascii, err := idna.Punycode.ToASCII(s); err == nil && ascii != "" {
		return ascii
	}
	return s
}

func textFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// scanLines calls fn for every non-blank line and returns how many there were.
func scanLines(path string, fn func(string)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n++
		fn(line)
	}
	return n, scanner.Err()
}

type tailWriter struct {
	w    io.Writer
	n    int64
	last byte
}

func (t *tailWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.n += int64(n)
		t.last = p[n-1]
	}
	return n, err
}
