package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	// Registry holds every fastrm metric. A private registry keeps the
	// textfile export free of Go runtime and process collectors.
	Registry = prometheus.NewRegistry()
)

// Removal metrics
var (
	// FilesRemovedTotal counts regular files (and other non-directory,
	// non-symlink entries) unlinked
	FilesRemovedTotal = NewCounter(
		"fastrm_files_removed_total",
		"Total number of files removed.",
	)

	// DirsRemovedTotal counts directories removed after being emptied
	DirsRemovedTotal = NewCounter(
		"fastrm_dirs_removed_total",
		"Total number of directories removed.",
	)

	// SymlinksRemovedTotal counts symbolic links removed as link objects
	SymlinksRemovedTotal = NewCounter(
		"fastrm_symlinks_removed_total",
		"Total number of symbolic links removed.",
	)

	// BytesFreedTotal sums the apparent size of removed files
	BytesFreedTotal = NewCounter(
		"fastrm_bytes_freed_total",
		"Total bytes freed by removed files.",
	)

	// ErrorsTotal counts failures by kind (filesystem, pattern, safety, canceled)
	ErrorsTotal = NewCounterVec(
		"fastrm_errors_total",
		"Total number of failed units of work.",
		[]string{"kind"},
	)
)

// Run metrics
var (
	// WorkersActive tracks pool slots currently held by a worker
	WorkersActive = NewGauge(
		"fastrm_workers_active",
		"Number of worker slots currently in use.",
	)

	RunDuration = NewDurationHistogram(
		"fastrm_run_duration_seconds",
		"Duration of fastrm runs in seconds.",
	)

	LastRunTimestamp = NewGauge(
		"fastrm_last_run_timestamp",
		"Timestamp of the last run (Unix epoch seconds).",
	)

	LastRunSuccess = NewGauge(
		"fastrm_last_run_success",
		"1 if the last run removed everything it matched, 0 otherwise.",
	)
)

// Init registers all metrics with Registry.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(
			FilesRemovedTotal,
			DirsRemovedTotal,
			SymlinksRemovedTotal,
			BytesFreedTotal,
			ErrorsTotal,
			WorkersActive,
			RunDuration,
			LastRunTimestamp,
			LastRunSuccess,
		)
	})
}

// RecordRun stores the outcome of a finished run
func RecordRun(start time.Time, success bool) {
	RunDuration.Observe(time.Since(start).Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
	if success {
		LastRunSuccess.Set(1)
	} else {
		LastRunSuccess.Set(0)
	}
}

// RecordError increments the error counter for kind
func RecordError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The file is replaced atomically.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
