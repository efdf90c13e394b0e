// Package probe pipes a host list into an external liveness checker
// (httpx or httprobe) and tees its output to a result file.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Tool describes an external probe binary.
type Tool struct {
	Name   string
	Binary string
	Args   []string
}

var (
	// HTTPX is projectdiscovery/httpx.
	HTTPX = Tool{Name: "httpx", Binary: "httpx", Args: []string{"-t", "200", "-silent", "-nc", "-rl", "600"}}
	// HTTProbe is tomnomnom/httprobe.
	HTTProbe = Tool{Name: "httprobe", Binary: "httprobe", Args: []string{"-c", "1000"}}
)

var tools = map[string]Tool{
	HTTPX.Name:    HTTPX,
	HTTProbe.Name: HTTProbe,
}

// ByName returns the tool registered under name.
func ByName(name string) (Tool, error) {
	t, ok := tools[strings.ToLower(name)]
	if !ok {
		return Tool{}, fmt.Errorf("unknown probe %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// Names lists the registered tools.
func Names() []string {
	out := make([]string, 0, len(tools))
	for n := range tools {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ProcessError means the tool could not be started or exited with an error.
// Files written before the probe are unaffected.
type ProcessError struct {
	Tool     string
	ExitCode int // -1 when the process did not run
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Run feeds input to the tool's stdin and writes its stdout to output, which
// is truncated first, and to echo when non-nil. It returns the number of
// lines the tool printed.
func Run(ctx context.Context, tool Tool, input, output string, echo io.Writer) (int, error) {
	in, err := os.Open(input)
	if err != nil {
		return 0, fmt.Errorf("open probe input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("create probe output: %w", err)
	}
	defer out.Close()

	lc := &lineCounter{}
	writers := []io.Writer{out, lc}
	if echo != nil {
		writers = append(writers, echo)
	}

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, tool.Binary, tool.Args...)
	cmd.Stdin = in
	cmd.Stdout = io.MultiWriter(writers...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		pe := &ProcessError{Tool: tool.Name, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		return lc.n, pe
	}
	return lc.n, nil
}

type lineCounter struct{ n int }

func (c *lineCounter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			c.n++
		}
	}
	return len(p), nil
}
