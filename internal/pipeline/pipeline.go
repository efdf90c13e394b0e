// Package pipeline runs an operation over the catalog: select programs,
// download and extract each archive, merge the lists, record subdomains.
//
// Programs are processed by a bounded worker pool. A failing program is
// reported in the Summary and never stops its siblings.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/filter"
	"github.com/storbeck/chaosdl/internal/layout"
	"github.com/storbeck/chaosdl/internal/merge"
)

// DefaultWorkers is the pool size when Runner.Workers is unset.
const DefaultWorkers = 5

// Fetcher downloads and extracts a program archive into root/<program>.
type Fetcher interface {
	Fetch(ctx context.Context, p catalog.Program, root string) (string, error)
}

// Store is the ledger as seen by the pipeline.
type Store interface {
	merge.Recorder
	EnsureProgram(ctx context.Context, name, platform string, bounty bool) (int64, error)
}

// Stage names the step a program failed at.
type Stage string

const (
	StageQueue  Stage = "queue"
	StageFetch  Stage = "fetch"
	StageLedger Stage = "ledger"
	StageMerge  Stage = "merge"
)

// ProgramResult is the outcome for one program.
type ProgramResult struct {
	Program  string
	Dir      string
	Merge    merge.Result
	Stage    Stage // set when Err is non-nil
	Err      error
	Duration time.Duration
}

// OK reports whether the program was fully processed.
func (r ProgramResult) OK() bool { return r.Err == nil }

// Runner executes operations against a catalog snapshot taken once at start.
type Runner struct {
	Catalog []catalog.Program
	Fetcher Fetcher
	Store   Store
	// Root is the directory operation directories are created in.
	Root    string
	Workers int
	Logger  *slog.Logger
	// OnResult, when set, is called once per program as it completes.
	// Calls are serialized.
	OnResult func(ProgramResult)
}

// Select returns the programs op would process.
func (r *Runner) Select(op Operation) []catalog.Program {
	return filter.Select(r.Catalog, op.Params)
}

// Run processes every program matching op. The returned error is non-nil
// only when the operation could not start (the output files could not be
// opened); per-program failures are in the Summary.
func (r *Runner) Run(ctx context.Context, op Operation) (*Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", uuid.NewString(), "operation", op.ID)

	opDir := filepath.Join(r.Root, op.Dir)
	sum := &Summary{
		Operation:  op,
		Dir:        opDir,
		MergedFile: layout.MergedFile(opDir),
		NewFile:    layout.NewFile(opDir),
		Started:    time.Now(),
	}

	selected := r.Select(op)
	logger.Info("operation selected programs", "matched", len(selected), "dir", opDir)
	if len(selected) == 0 {
		return sum, nil
	}

	merged, err := merge.OpenSink(sum.MergedFile)
	if err != nil {
		return nil, err
	}
	defer merged.Close()
	fresh, err := merge.OpenSink(sum.NewFile)
	if err != nil {
		return nil, err
	}
	defer fresh.Close()

	m := merge.New(merged, fresh, r.Store, logger)
	sum.Results = r.runPool(ctx, logger, m, opDir, selected)
	sum.Elapsed = time.Since(sum.Started)

	logger.Info("operation finished",
		"succeeded", sum.Succeeded(), "failed", len(sum.Failed()),
		"new", sum.NewSubdomains(), "suppressed", sum.Suppressed(), "elapsed", sum.Elapsed)
	return sum, nil
}

func (r *Runner) runPool(ctx context.Context, logger *slog.Logger, m *merge.Merger, opDir string, selected []catalog.Program) []ProgramResult {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(selected) {
		workers = len(selected)
	}

	results := make([]ProgramResult, len(selected))
	var notifyMu sync.Mutex
	done := func(i int, res ProgramResult) {
		results[i] = res
		if r.OnResult != nil {
			notifyMu.Lock()
			r.OnResult(res)
			notifyMu.Unlock()
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				done(i, r.process(ctx, logger, m, opDir, selected[i]))
			}
		}()
	}

	next := 0
feed:
	for ; next < len(selected); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(selected); i++ {
		done(i, ProgramResult{Program: selected[i].Name, Stage: StageQueue, Err: ctx.Err()})
	}
	return results
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, m *merge.Merger, opDir string, p catalog.Program) ProgramResult {
	start := time.Now()
	res := ProgramResult{Program: p.Name}
	fail := func(stage Stage, err error) ProgramResult {
		res.Stage = stage
		res.Err = err
		res.Duration = time.Since(start)
		logger.Warn("program failed", "program", p.Name, "stage", stage, "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(StageQueue, err)
	}

	dir, err := r.Fetcher.Fetch(ctx, p, opDir)
	if err != nil {
		return fail(StageFetch, err)
	}
	res.Dir = dir

	id, err := r.Store.EnsureProgram(ctx, p.Name, p.Platform, p.Bounty)
	if err != nil {
		return fail(StageLedger, err)
	}

	mr, err := m.MergeAndRecord(ctx, opDir, p.Name, id)
	res.Merge = mr
	if err != nil {
		return fail(StageMerge, err)
	}

	res.Duration = time.Since(start)
	logger.Debug("program done", "program", p.Name, "new", mr.New, "lines", mr.Lines, "elapsed", res.Duration)
	return res
}
