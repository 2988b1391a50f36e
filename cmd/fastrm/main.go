package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fastrm/internal/cleanup"
	"fastrm/internal/config"
	"fastrm/internal/database"
	"fastrm/internal/exitcodes"
	"fastrm/internal/logging"
	"fastrm/internal/pool"
	"fastrm/internal/resolve"
	"fastrm/internal/safety"
)

// usageError marks bad command-line input
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// configError marks an invalid configuration file or flag value
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

type options struct {
	jobs        int
	verbose     bool
	force       bool
	failFast    bool
	configPath  string
	logFile     string
	metricsFile string
	historyPath string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		// Work already running finishes; nothing new is started.
		cancel()
	}()

	code := execute(ctx, os.Args[1:], os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code. Errors
// are reported on stderr as "fastrm: <message>".
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "fastrm: %v\n", err)
		return exitCode(err)
	}
	return exitcodes.Success
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fastrm [flags] PATTERN...",
		Short: "Delete files and directory trees matched by glob patterns, in parallel",
		Long: `fastrm removes every file, symlink and directory tree matched by the given
glob patterns. Patterns support *, ?, [...], {a,b} and ** and are resolved
relative to the working directory. Directories are emptied before they are
removed; symlinks are removed as links and never followed.

Patterns, sibling files and sibling subdirectories are processed by a pool of
--jobs workers. A failure leaves the failing entry and its ancestors in place
and does not stop other work unless --fail-fast is given.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &usageError{err: errors.New("at least one pattern is required")}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd.Flags(), opts, args, stderr)
		},
	}

	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.Flags()
	flags.IntVarP(&opts.jobs, "jobs", "j", 1, "Number of parallel workers")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print each path to stderr before removing it")
	flags.BoolVarP(&opts.force, "force", "f", false, "Treat paths that disappear before removal as removed")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "Start no new work after the first failure")
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file")
	flags.StringVar(&opts.logFile, "log-file", "", "Write a rotated run log to this file")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	flags.StringVar(&opts.historyPath, "history", "", "Record the run in this SQLite history database")

	return cmd
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on top of it
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	if flags.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("force") {
		cfg.Force = opts.force
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = opts.failFast
	}
	if flags.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = opts.metricsFile
	}
	if flags.Changed("history") {
		cfg.History.DatabasePath = opts.historyPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDelete(ctx context.Context, flags *pflag.FlagSet, opts *options, patterns []string, stderr io.Writer) error {
	cfg, err := loadConfig(flags, opts)
	if err != nil {
		return &configError{err: err}
	}

	p, err := pool.New(cfg.Jobs)
	if err != nil {
		return &configError{err: err}
	}

	logger := logging.NewWithConfig(cfg)
	db := openHistory(cfg, logger)
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close history database: %v", err)
			}
		}()
	}

	cleaner := cleanup.NewCleaner(cfg, p, logger, db)
	if cfg.Verbose {
		cleaner.SetDiagOutput(stderr)
	}

	_, err = cleaner.Run(ctx, patterns)
	return err
}

// openHistory opens the run history. Failing to open it is logged and the
// run proceeds without history.
func openHistory(cfg *config.Config, logger *log.Logger) *database.HistoryDB {
	if cfg.History.DatabasePath == "" {
		return nil
	}
	db, err := database.NewHistoryDB(cfg.History.DatabasePath)
	if err != nil {
		logger.Printf("ERROR: Failed to open history database: %v", err)
		return nil
	}
	return db
}

func exitCode(err error) int {
	var uerr *usageError
	var cerr *configError
	var perr *resolve.PatternError
	var verr *safety.ViolationError

	switch {
	case errors.As(err, &uerr):
		return exitcodes.Usage
	case errors.As(err, &cerr):
		return exitcodes.InvalidConfig
	case errors.As(err, &perr):
		return exitcodes.PatternError
	case errors.As(err, &verr):
		return exitcodes.SafetyViolation
	default:
		return exitcodes.RuntimeError
	}
}
