package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"fastrm/internal/config"
	"fastrm/internal/database"
	"fastrm/internal/entry"
	"fastrm/internal/fsops"
	"fastrm/internal/logging"
	"fastrm/internal/metrics"
	"fastrm/internal/outcome"
	"fastrm/internal/pool"
	"fastrm/internal/resolve"
	"fastrm/internal/safety"
	"fastrm/internal/tree"
)

// Error kinds used as the fastrm_errors_total label
const (
	KindFilesystem = "filesystem"
	KindPattern    = "pattern"
	KindSafety     = "safety"
	KindCanceled   = "canceled"
)

// CleanupLogger interface for structured logging in cleanup
type CleanupLogger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// cleanupStdLogger wraps standard log.Logger to implement CleanupLogger interface
type cleanupStdLogger struct {
	*log.Logger
}

func (l *cleanupStdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *cleanupStdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *cleanupStdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Result summarises a finished run
type Result struct {
	RunID    string
	Stats    tree.Stats
	Failures int64 // paths that could not be removed, patterns that failed to resolve
	Duration time.Duration
}

// Cleaner resolves patterns and deletes what they match on a shared pool
type Cleaner struct {
	cfg       *config.Config
	pool      *pool.Pool
	logger    CleanupLogger
	db        *database.HistoryDB // Optional run history
	resolver  *resolve.Resolver
	validator *safety.Validator // nil when the guard is disabled
	deleter   fsops.Deleter
	diag      *logging.DiagWriter
}

// NewCleaner creates a new Cleaner instance. db may be nil.
func NewCleaner(cfg *config.Config, p *pool.Pool, logger *log.Logger, db *database.HistoryDB) *Cleaner {
	if cfg == nil {
		cfg = config.Default()
	}
	cleanupLogger := &cleanupStdLogger{Logger: logger}
	if logger == nil {
		cleanupLogger.Logger = logging.New()
	}

	metrics.Init()

	c := &Cleaner{
		cfg:      cfg,
		pool:     p,
		logger:   cleanupLogger,
		db:       db,
		resolver: resolve.New(),
		deleter:  fsops.OSDeleter{},
	}
	if !cfg.Safety.Disable {
		c.validator = safety.NewValidator(cfg.Safety.AllowedRoots, cfg.Safety.ProtectedPaths)
	}
	if cfg.Verbose {
		c.diag = logging.NewDiagWriter(os.Stderr)
	}
	return c
}

// SetDeleter replaces the filesystem operations (for testing)
func (c *Cleaner) SetDeleter(d fsops.Deleter) {
	c.deleter = d
}

// SetValidator replaces the safety guard. nil disables it.
func (c *Cleaner) SetValidator(v *safety.Validator) {
	c.validator = v
}

// SetDiagOutput redirects verbose path lines to w. nil turns them off.
func (c *Cleaner) SetDiagOutput(w io.Writer) {
	if w == nil {
		c.diag = nil
		return
	}
	c.diag = logging.NewDiagWriter(w)
}

// run holds the state of one Run call
type run struct {
	*Cleaner
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	agg      *outcome.Aggregator
	remover  *tree.Deleter
	failures atomic.Int64
}

// Run resolves every pattern and deletes all matches. Patterns are resolved
// in parallel and each match is deleted as soon as it is found. Every
// pattern and path is attempted even after a failure, unless fail_fast is
// set, in which case work that has not started yet is skipped.
//
// The returned error is nil if everything matched was removed, otherwise it
// is one representative failure.
func (c *Cleaner) Run(ctx context.Context, patterns []string) (Result, error) {
	start := time.Now()
	r := &run{Cleaner: c, id: uuid.NewString()}
	r.ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()

	var onFirst func(error)
	if c.cfg.FailFast {
		onFirst = func(error) { r.cancel() }
	}
	r.agg = outcome.New(onFirst)
	r.remover = tree.New(c.pool, c.deleter, tree.Options{
		Diag:       c.diag,
		MissingOK:  c.cfg.Force,
		TrackBytes: c.cfg.Metrics.Textfile != "" || c.db != nil || c.cfg.Log.File != "",
		OnRemove:   countRemoval,
		OnFailure:  func(e entry.Entry, err error) { r.failed(e.Path, err) },
	})

	c.logger.Info("Starting run",
		"run_id", r.id,
		"patterns", len(patterns),
		"jobs", c.pool.Size(),
		"force", c.cfg.Force,
		"fail_fast", c.cfg.FailFast,
	)

	c.pool.Run(func() {
		scope := c.pool.NewScope()
		for _, pattern := range patterns {
			scope.Go(func() { r.pattern(pattern) })
		}
		scope.Wait()
	})

	err := r.agg.Err()
	res := Result{
		RunID:    r.id,
		Stats:    r.remover.Stats(),
		Failures: r.failures.Load(),
		Duration: time.Since(start),
	}
	c.finish(start, patterns, res, err)
	return res, err
}

// pattern resolves one pattern and deletes its matches on a scope of its own
func (r *run) pattern(pattern string) {
	scope := r.pool.NewScope()
	defer scope.Wait()

	for e, err := range r.resolver.Resolve(pattern) {
		if r.ctx.Err() != nil {
			r.agg.Add(tree.ErrCanceled)
			metrics.RecordError(KindCanceled)
			return
		}
		if err != nil {
			r.failed(pathOf(err, pattern), err)
			r.agg.Add(err)
			continue
		}
		if r.validator != nil {
			if err := r.validator.ValidateDeleteTarget(e.Path); err != nil {
				r.failed(e.Path, err)
				r.agg.Add(err)
				continue
			}
		}

		scope.Go(func() {
			err := r.remover.Delete(r.ctx, e)
			if errors.Is(err, tree.ErrCanceled) {
				metrics.RecordError(KindCanceled)
			}
			r.agg.Add(err)
		})
	}
}

// failed records one failed path. It runs on workers concurrently.
func (r *run) failed(path string, err error) {
	r.failures.Add(1)
	kind := errorKind(err)
	metrics.RecordError(kind)
	r.logger.Error("Failed to delete", "run_id", r.id, "path", path, "kind", kind, "error", err)

	if r.db != nil {
		if dbErr := r.db.RecordFailure(r.id, path, err.Error()); dbErr != nil {
			r.logger.Error("Failed to record failure to database", "error", dbErr)
		}
	}
	// Cancel here rather than when the failure reaches the top of its tree
	if r.cfg.FailFast {
		r.cancel()
	}
}

// finish records the run in metrics, history and the log. None of these can
// change the outcome of the run.
func (c *Cleaner) finish(start time.Time, patterns []string, res Result, err error) {
	metrics.RecordRun(start, err == nil)
	if path := c.cfg.Metrics.Textfile; path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			c.logger.Error("Failed to write metrics textfile", "path", path, "error", werr)
		}
	}

	status := database.StatusSuccess
	errMsg := ""
	if err != nil {
		status = database.StatusFailed
		errMsg = err.Error()
	}

	if c.db != nil {
		rec := database.RunRecord{
			RunID:        res.RunID,
			StartedAt:    start,
			FinishedAt:   start.Add(res.Duration),
			Patterns:     patterns,
			Jobs:         c.pool.Size(),
			Files:        res.Stats.Files,
			Dirs:         res.Stats.Dirs,
			Symlinks:     res.Stats.Symlinks,
			BytesFreed:   res.Stats.Bytes,
			Status:       status,
			ErrorMessage: errMsg,
		}
		if dbErr := c.db.RecordRun(rec); dbErr != nil {
			c.logger.Error("Failed to record run to database", "run_id", res.RunID, "error", dbErr)
		}
	}

	c.logger.Info("Run complete",
		"run_id", res.RunID,
		"status", status,
		"files", res.Stats.Files,
		"dirs", res.Stats.Dirs,
		"symlinks", res.Stats.Symlinks,
		"freed", humanize.Bytes(uint64(res.Stats.Bytes)),
		"failures", res.Failures,
		"duration", res.Duration.Round(time.Millisecond),
	)
}

func countRemoval(e entry.Entry) {
	switch e.Kind {
	case entry.Dir:
		metrics.DirsRemovedTotal.Inc()
	case entry.Symlink:
		metrics.SymlinksRemovedTotal.Inc()
	default:
		metrics.FilesRemovedTotal.Inc()
		metrics.BytesFreedTotal.Add(float64(e.Size))
	}
}

// errorKind classifies a failure for metrics and the exit status
func errorKind(err error) string {
	var perr *resolve.PatternError
	var verr *safety.ViolationError
	switch {
	case errors.As(err, &perr):
		return KindPattern
	case errors.As(err, &verr):
		return KindSafety
	case errors.Is(err, tree.ErrCanceled), errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindFilesystem
	}
}

// pathOf names the path a resolution error refers to
func pathOf(err error, pattern string) string {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return perr.Path
	}
	return pattern
}
