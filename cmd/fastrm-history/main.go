package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fastrm/internal/database"
	"fastrm/internal/exitcodes"
)

type options struct {
	dbPath     string
	recent     int
	failures   string
	stats      bool
	prune      int
	jsonOutput bool
}

func main() {
	cmd := newRootCmd(os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fastrm-history: %v\n", err)
		os.Exit(exitcodes.RuntimeError)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fastrm-history",
		Short: "Query the fastrm run history database",
		Example: `  fastrm-history --db history.db --recent 10        # Show 10 most recent runs
  fastrm-history --db history.db --failures RUN_ID  # Show paths a run failed on
  fastrm-history --db history.db --stats            # Show totals over all runs
  fastrm-history --db history.db --prune 90         # Drop runs older than 90 days`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(out, opts, cmd.UsageString)
		},
	}
	cmd.SetOut(out)

	flags := cmd.Flags()
	flags.StringVar(&opts.dbPath, "db", "/var/lib/fastrm/history.db", "Path to run history database")
	flags.IntVar(&opts.recent, "recent", 0, "Show N most recent runs")
	flags.StringVar(&opts.failures, "failures", "", "Show failed paths of a run")
	flags.BoolVar(&opts.stats, "stats", false, "Show totals over all runs")
	flags.IntVar(&opts.prune, "prune", 0, "Delete runs older than N days")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	cmd.MarkFlagsMutuallyExclusive("recent", "failures", "stats", "prune")

	return cmd
}

func runQuery(out io.Writer, opts *options, usage func() string) error {
	// Opening creates a fresh database; a query against a wrong path must not.
	if _, err := os.Stat(opts.dbPath); err != nil {
		return fmt.Errorf("history database %s: %w", opts.dbPath, err)
	}

	db, err := database.NewHistoryDB(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", opts.dbPath, err)
	}
	defer db.Close()

	switch {
	case opts.stats:
		return showStats(out, db, opts.jsonOutput)
	case opts.recent > 0:
		return showRecent(out, db, opts.recent, opts.jsonOutput)
	case opts.failures != "":
		return showFailures(out, db, opts.failures, opts.jsonOutput)
	case opts.prune > 0:
		return prune(out, db, opts.prune)
	default:
		fmt.Fprint(out, usage())
		return errors.New("one of --recent, --failures, --stats or --prune is required")
	}
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func showStats(out io.Writer, db *database.HistoryDB, jsonOutput bool) error {
	stats, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if jsonOutput {
		return printJSON(out, stats)
	}

	fmt.Fprintln(out, "Run History")
	if stats.TotalRuns > 0 {
		fmt.Fprintf(out, "Period: %s to %s\n", stats.FirstRun.Format("2006-01-02"), stats.LastRun.Format("2006-01-02"))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Runs:           %d (%d failed)\n", stats.TotalRuns, stats.FailedRuns)
	fmt.Fprintf(out, "Files removed:  %s\n", humanize.Comma(stats.TotalFiles))
	fmt.Fprintf(out, "Dirs removed:   %s\n", humanize.Comma(stats.TotalDirs))
	fmt.Fprintf(out, "Links removed:  %s\n", humanize.Comma(stats.TotalSymlinks))
	fmt.Fprintf(out, "Space freed:    %s\n", humanize.Bytes(uint64(stats.TotalBytesFreed)))
	fmt.Fprintf(out, "Failed paths:   %s\n", humanize.Comma(stats.TotalFailures))
	return nil
}

func showRecent(out io.Writer, db *database.HistoryDB, limit int, jsonOutput bool) error {
	runs, err := db.GetRecentRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent runs: %w", err)
	}

	if jsonOutput {
		return printJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Run ID\tStarted\tStatus\tJobs\tFiles\tDirs\tLinks\tFreed\tDuration\tPatterns")
	_, _ = fmt.Fprintln(w, "------\t-------\t------\t----\t-----\t----\t-----\t-----\t--------\t--------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.RunID,
			humanize.Time(r.StartedAt),
			r.Status,
			r.Jobs,
			r.Files,
			r.Dirs,
			r.Symlinks,
			humanize.Bytes(uint64(r.BytesFreed)),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			strings.Join(r.Patterns, " "),
		)
	}
	return w.Flush()
}

func showFailures(out io.Writer, db *database.HistoryDB, runID string, jsonOutput bool) error {
	failures, err := db.GetFailures(runID)
	if err != nil {
		return fmt.Errorf("failed to get failures: %w", err)
	}

	if jsonOutput {
		return printJSON(out, failures)
	}

	if len(failures) == 0 {
		fmt.Fprintf(out, "No failures recorded for run %s\n", runID)
		return nil
	}

	fmt.Fprintf(out, "Failures of run %s:\n\n", runID)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Path\tError")
	_, _ = fmt.Fprintln(w, "----\t-----")
	for _, f := range failures {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", f.Path, f.ErrorMessage)
	}
	return w.Flush()
}

func prune(out io.Writer, db *database.HistoryDB, days int) error {
	n, err := db.DeleteOldRuns(days)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	fmt.Fprintf(out, "Deleted %d run(s) older than %d days\n", n, days)
	return nil
}
