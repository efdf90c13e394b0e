package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/storbeck/chaosdl/internal/catalog"
	"github.com/storbeck/chaosdl/internal/config"
	"github.com/storbeck/chaosdl/internal/ledger"
)

// app carries the resolved configuration into subcommands.
type app struct {
	cfgPath string
	flags   config.Config
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "chaosdl",
		Short: "Download, merge and de-duplicate bug-bounty subdomain lists from the Chaos index",
		Long: `chaosdl fetches the public Chaos program index, downloads the subdomain
archives of the programs you select, merges them into one file per operation
and records every subdomain in a local SQLite ledger so later runs can tell
which ones are new.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.cfgPath, "config", "c", "", "YAML config file")
	f.StringVar(&a.flags.Index, "index", "", "program index URL or local JSON file")
	f.StringVar(&a.flags.IndexCache, "index-cache", "", "save the fetched index to this file")
	f.StringVarP(&a.flags.OutputDir, "output", "o", "", "directory for downloads, merged files and exports")
	f.StringVar(&a.flags.DBPath, "db", "", "ledger database path")
	f.StringVar(&a.flags.DBDriver, "db-driver", "", "sqlite driver: sqlite3 (cgo) or sqlite (pure Go)")
	f.IntVarP(&a.flags.Workers, "workers", "w", 0, "concurrent program downloads")
	f.StringVar(&a.flags.UserAgent, "user-agent", "", "User-Agent header for index and archive requests")
	f.DurationVar(&a.flags.CatalogTimeout, "index-timeout", 0, "timeout for the index request")
	f.DurationVar(&a.flags.ArchiveTimeout, "archive-timeout", 0, "timeout per archive download")
	f.Float64Var(&a.flags.RateLimit, "rate", 0, "archive requests per second (0 = unlimited)")
	f.StringVar(&a.flags.LogLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&a.flags.LogFormat, "log-format", "", "text or json")

	root.AddCommand(
		newDownloadCmd(a),
		newInfoCmd(a),
		newShowCmd(a),
		newListCmd(a),
		newExportCmd(a),
		newProbeCmd(a),
	)
	return root
}

// setup loads the config file and lets explicitly set flags override it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("index") {
		cfg.Index = a.flags.Index
	}
	if changed("index-cache") {
		cfg.IndexCache = a.flags.IndexCache
	}
	if changed("output") {
		cfg.OutputDir = a.flags.OutputDir
	}
	if changed("db") {
		cfg.DBPath = a.flags.DBPath
	}
	if changed("db-driver") {
		cfg.DBDriver = a.flags.DBDriver
	}
	if changed("workers") {
		cfg.Workers = a.flags.Workers
	}
	if changed("user-agent") {
		cfg.UserAgent = a.flags.UserAgent
	}
	if changed("index-timeout") {
		cfg.CatalogTimeout = a.flags.CatalogTimeout
	}
	if changed("archive-timeout") {
		cfg.ArchiveTimeout = a.flags.ArchiveTimeout
	}
	if changed("rate") {
		cfg.RateLimit = a.flags.RateLimit
	}
	if changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if changed("log-format") {
		cfg.LogFormat = a.flags.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be positive")
	}

	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) loadCatalog(ctx context.Context) ([]catalog.Program, error) {
	programs, err := catalog.Open(ctx, a.cfg.Index, catalog.Config{
		Timeout:   a.cfg.CatalogTimeout,
		UserAgent: a.cfg.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("index loaded", "source", a.cfg.Index, "programs", len(programs))
	if a.cfg.IndexCache != "" {
		if err := catalog.Save(a.cfg.IndexCache, programs); err != nil {
			a.logger.Warn("index cache not written", "path", a.cfg.IndexCache, "error", err)
		}
	}
	return programs, nil
}

func (a *app) openLedger() (*ledger.Ledger, error) {
	l, err := ledger.Open(a.cfg.DBPath, ledger.WithDriver(a.cfg.DBDriver), ledger.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	l.SetLogger(a.logger)
	return l, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
