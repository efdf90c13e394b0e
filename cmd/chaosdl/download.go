package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/storbeck/chaosdl/internal/archive"
	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/layout"
	"github.com/storbeck/chaosdl/internal/pipeline"
	"github.com/storbeck/chaosdl/internal/probe"
)

type downloadOpts struct {
	platform   string
	programs   []string
	probe      string
	noProgress bool
}

func newDownloadCmd(a *app) *cobra.Command {
	o := &downloadOpts{}
	var ops strings.Builder
	for _, op := range pipeline.Operations() {
		fmt.Fprintf(&ops, "  %-24s %s\n", op[0], op[1])
	}

	cmd := &cobra.Command{
		Use:   "download <operation>",
		Short: "Download and merge the subdomain lists of the selected programs",
		Long: "Operations:\n" + ops.String() + `
Platform operations need --platform (hackerone, bugcrowd, yeswehack, ... or
self-hosted). The program operation needs one or more --program values.`,
		Example: `  chaosdl download bounty-platform --platform hackerone --probe httpx
  chaosdl download program --program "Acme Corp" --program Bolt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var platform *string
			if cmd.Flags().Changed("platform") {
				platform = &o.platform
			}
			return a.download(cmd.Context(), args[0], platform, o)
		},
	}
	cmd.Flags().StringVarP(&o.platform, "platform", "p", "", "platform name, or self-hosted")
	cmd.Flags().StringArrayVar(&o.programs, "program", nil, "program name for the program operation (repeatable)")
	cmd.Flags().StringVar(&o.probe, "probe", "", "run a liveness probe on the new subdomains: "+strings.Join(probe.Names(), " or "))
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func (a *app) download(ctx context.Context, opID string, platform *string, o *downloadOpts) error {
	var tool probe.Tool
	if o.probe != "" {
		t, err := probe.ByName(o.probe)
		if err != nil {
			return err
		}
		tool = t
	}

	var ops []pipeline.Operation
	if opID == "program" {
		if len(o.programs) == 0 {
			return pipeline.ErrProgramRequired
		}
		for _, name := range o.programs {
			op, err := pipeline.Resolve(opID, nil, name)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}
	} else {
		op, err := pipeline.Resolve(opID, platform, "")
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	programs, err := a.loadCatalog(ctx)
	if err != nil {
		return err
	}

	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	runner := &pipeline.Runner{
		Catalog: programs,
		Fetcher: archive.New(archive.Config{
			Timeout:   a.cfg.ArchiveTimeout,
			UserAgent: a.cfg.UserAgent,
			RateLimit: a.cfg.RateLimit,
			Logger:    a.logger,
		}),
		Store:   l,
		Root:    a.cfg.OutputDir,
		Workers: a.cfg.Workers,
		Logger:  a.logger,
	}

	out := os.Stdout
	for _, op := range ops {
		selected := runner.Select(op)
		if op.ID == "program" {
			if len(selected) == 0 {
				failLine(out, "program %q not found in the index", *op.Params.Name)
				continue
			}
			renderProgram(out, selected[0])
		}
		infoLine(out, "Starting download of %d programs into %s", len(selected), op.Dir)

		var bar *progressbar.ProgressBar
		if !o.noProgress && len(selected) > 0 {
			bar = progressbar.NewOptions(len(selected),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(op.Dir),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			runner.OnResult = func(pipeline.ProgramResult) { bar.Add(1) }
		} else {
			runner.OnResult = nil
		}

		sum, err := runner.Run(ctx, op)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return err
		}
		printSummary(out, sum)

		if tool.Name != "" && sum.Succeeded() > 0 {
			runProbe(ctx, a, tool, sum.Dir)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// runProbe reports probe failures as warnings; the downloaded files stay valid.
func runProbe(ctx context.Context, a *app, tool probe.Tool, opDir string) {
	input := layout.NewFile(opDir)
	output := layout.LiveFile(opDir, tool.Name)
	infoLine(os.Stdout, "Probing %s with %s", input, tool.Name)

	n, err := probe.Run(ctx, tool, input, output, os.Stdout)
	var pe *probe.ProcessError
	switch {
	case errors.As(err, &pe):
		warnLine(os.Stdout, "%s failed: %v", tool.Name, pe)
	case err != nil:
		warnLine(os.Stdout, "probe: %v", err)
	default:
		okLine(os.Stdout, "%d live hosts written to %s", n, output)
	}
	a.logger.Debug("probe finished", "tool", tool.Name, "input", input, "output", output, "lines", n, "error", err)
}

// programByName is used by commands that take program names as arguments.
func programByName(programs []catalog.Program, name string) (catalog.Program, error) {
	p, ok := catalog.Lookup(programs, name)
	if !ok {
		return catalog.Program{}, fmt.Errorf("program %q not found in the index", name)
	}
	return p, nil
}
