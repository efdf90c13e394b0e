package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink is an append-only file shared by all workers of one operation. Each
// Append call holds the lock for its whole write, so lines from different
// programs never interleave mid-line.
type Sink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenSink opens path for appending, creating it and its parent directory.
func OpenSink(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Sink{f: f, path: path}, nil
}

// Path returns the file name.
func (s *Sink) Path() string { return s.path }

// Append runs fn with exclusive access to a buffered writer on the file.
func (s *Sink) Append(fn func(w io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw := bufio.NewWriter(s.f)
	if err := fn(bw); err != nil {
		// Partial output stays in the file.
		bw.Flush()
		return err
	}
	return bw.Flush()
}

// WriteLines appends lines, one per line.
func (s *Sink) WriteLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return s.Append(func(w io.Writer) error {
		for _, l := range lines {
			if _, err := io.WriteString(w, l+"\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
