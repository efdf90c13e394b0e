package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/storbeck/chaosdl/internal/layout"
)

// ExportSource reads recorded subdomains.
type ExportSource interface {
	ProgramID(ctx context.Context, name string) (int64, error)
	ListSubdomains(ctx context.Context, programID int64) ([]string, error)
}

// Export writes every subdomain recorded for program to
// <outDir>/<program>_exported.txt, sorted, one per line. It returns the file
// path and the number of lines written.
func Export(ctx context.Context, src ExportSource, outDir, program string) (string, int, error) {
	id, err := src.ProgramID(ctx, program)
	if err != nil {
		return "", 0, err
	}
	subs, err := src.ListSubdomains(ctx, id)
	if err != nil {
		return "", 0, err
	}
	sort.Strings(subs)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	path := layout.ExportFile(outDir, program)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, s := range subs {
		if _, err := w.WriteString(s + "\n"); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	return path, len(subs), f.Close()
}
