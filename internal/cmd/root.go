package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/analytics"
	"github.com/harrison/fragility/internal/config"
	"github.com/harrison/fragility/internal/ingest"
	"github.com/harrison/fragility/internal/logger"
	"github.com/harrison/fragility/internal/metrics"
	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/report"
	"github.com/harrison/fragility/internal/store"
	"github.com/harrison/fragility/internal/store/memory"
	"github.com/harrison/fragility/internal/store/postgres"
	"github.com/harrison/fragility/internal/store/sqlite"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	driver     string
	dbPath     string
}

// NewRootCommand creates and returns the root cobra command for fragility
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "fragility",
		Short: "Decision-fragility analytics over user action sequences",
		Long: `Fragility analyzes recorded user actions to measure how often sessions
end in a terminal action (purchase or logout), ranks the most common
action-to-action transitions, and extracts example sequences around them.

Each report run is stored so scores can be compared over time.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to config file (default: $FRAGILITY_HOME/config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringVar(&opts.driver, "store", "", "Store driver: sqlite, postgres, memory")
	pf.StringVar(&opts.dbPath, "db-path", "", "SQLite database path, relative to the working directory (config and FRAGILITY_DB_PATH resolve under FRAGILITY_HOME)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newCompareCommand(opts))
	cmd.AddCommand(newTransitionsCommand(opts))
	cmd.AddCommand(newSequencesCommand(opts))
	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// app is the resolved runtime for one command invocation.
type app struct {
	cfg     *config.Config
	store   store.Store
	log     logger.Logger
	metrics *metrics.Metrics
	fileLog *logger.FileLogger
}

// open resolves configuration, loggers and the store for cmd.
func (o *globalOptions) open(cmd *cobra.Command) (*app, error) {
	home, err := config.GetFragilityHome()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(home, o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var logLevelPtr, driverPtr, dbPathPtr *string
	if cmd.Flags().Changed("log-level") {
		logLevelPtr = &o.logLevel
	}
	if cmd.Flags().Changed("store") {
		driverPtr = &o.driver
	}
	if cmd.Flags().Changed("db-path") {
		dbPath := o.dbPath
		if dbPath != ":memory:" {
			if dbPath, err = filepath.Abs(dbPath); err != nil {
				return nil, fmt.Errorf("resolve --db-path: %w", err)
			}
		}
		dbPathPtr = &dbPath
	}
	cfg.MergeWithFlags(logLevelPtr, driverPtr, dbPathPtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, metrics: metrics.New()}

	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if cfg.LogDir != "" {
		fl, err := logger.NewFileLoggerWithLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		a.fileLog = fl
		a.log = logger.NewMultiLogger(console, fl)
	} else {
		a.log = console
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st

	return a, nil
}

// openStore connects the configured store driver.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.NewStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close releases the store and the run log.
func (a *app) Close() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.fileLog != nil {
		if err := a.fileLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *app) scorer() *analytics.Scorer {
	return analytics.NewScorer(a.cfg.Analysis.TerminalActions...)
}

func (a *app) builder() *report.Builder {
	return report.NewBuilder(a.store, a.store,
		report.WithScorer(a.scorer()),
		report.WithLogger(a.log),
		report.WithRecorder(a.metrics),
		report.WithSourceName(a.cfg.Store.Driver),
	)
}

func (a *app) ingestService() (*ingest.Service, error) {
	vocab := ingest.Vocabulary{Actions: a.cfg.Ingest.Actions, Weights: a.cfg.Ingest.Weights}
	if err := vocab.Validate(); err != nil {
		return nil, fmt.Errorf("ingest vocabulary: %w", err)
	}
	return ingest.NewService(a.store, vocab, a.log, a.metrics), nil
}

func (a *app) windowOptions() analytics.WindowOptions {
	return analytics.WindowOptions{
		MaxExamples: a.cfg.Analysis.MaxExamples,
		Before:      a.cfg.Analysis.WindowBefore,
		After:       a.cfg.Analysis.WindowAfter,
	}
}

// historyQuery builds a history query from --limit/--since/--until.
func historyQuery(limit int, since, until string) (models.HistoryQuery, error) {
	start, err := models.ParseTimeBound(since, false)
	if err != nil {
		return models.HistoryQuery{}, fmt.Errorf("--since: %w", err)
	}
	end, err := models.ParseTimeBound(until, true)
	if err != nil {
		return models.HistoryQuery{}, fmt.Errorf("--until: %w", err)
	}
	return models.HistoryQuery{Limit: limit, Start: start, End: end}, nil
}
