package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/filter"
	"github.com/storbeck/chaosdl/internal/layout"
	"github.com/storbeck/chaosdl/internal/ledger"
	"github.com/storbeck/chaosdl/internal/pipeline"
	"github.com/storbeck/chaosdl/internal/probe"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show statistics about the program index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			programs, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), catalog.Summarize(programs))
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <program>...",
		Short: "Show index details for programs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			programs, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range args {
				p, err := programByName(programs, name)
				if err != nil {
					return err
				}
				renderProgram(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var platform string
	var bounty, changed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List program names, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			programs, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			var params filter.Params
			flags := cmd.Flags()
			if flags.Changed("platform") {
				params.Platform = filter.String(pipeline.NormalizePlatform(platform))
			}
			if flags.Changed("bounty") {
				params.Bounty = filter.Bool(bounty)
			}
			if flags.Changed("changed") {
				params.Changed = filter.Bool(changed)
			}
			for _, p := range filter.Select(programs, params) {
				fmt.Fprintln(cmd.OutOrStdout(), p.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "platform name, or self-hosted")
	cmd.Flags().BoolVar(&bounty, "bounty", false, "programs offering (true) or not offering (false) a bounty")
	cmd.Flags().BoolVar(&changed, "changed", false, "programs with (true) or without (false) new subdomains")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "export [program]...",
		Short: "Write the subdomains recorded for programs to <program>_exported.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one program or use --all")
			}
			l, err := a.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			ctx := cmd.Context()
			names := args
			if all {
				if names, err = l.Programs(ctx); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				path, n, err := pipeline.Export(ctx, l, a.cfg.OutputDir, name)
				if errors.Is(err, ledger.ErrNotFound) {
					failLine(out, "%s has not been downloaded yet", name)
					continue
				}
				if err != nil {
					return err
				}
				okLine(out, "%s: %d subdomains written to %s", name, n, path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "export every program in the ledger")
	return cmd
}

func newProbeCmd(a *app) *cobra.Command {
	var toolName string
	cmd := &cobra.Command{
		Use:     "probe <operation-dir>",
		Short:   "Run a liveness probe on the new subdomains of a previous download",
		Example: `  chaosdl probe offer_bounty --tool httprobe`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := probe.ByName(toolName)
			if err != nil {
				return err
			}
			opDir := filepath.Join(a.cfg.OutputDir, args[0])
			if _, err := os.Stat(layout.NewFile(opDir)); err != nil {
				return fmt.Errorf("nothing to probe: %w", err)
			}
			runProbe(cmd.Context(), a, tool, opDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&toolName, "tool", "t", probe.HTTPX.Name, "probe tool")
	return cmd
}
