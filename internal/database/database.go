package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run status values stored in runs.status
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// HistoryDB manages the SQLite database of past runs and their failures
type HistoryDB struct {
	db *sql.DB
}

// RunRecord represents one invocation of fastrm
type RunRecord struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Patterns     []string  `json:"patterns"`
	Jobs         int       `json:"jobs"`
	Files        int64     `json:"files"`
	Dirs         int64     `json:"dirs"`
	Symlinks     int64     `json:"symlinks"`
	BytesFreed   int64     `json:"bytes_freed"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// FailureRecord is a single path that could not be removed during a run
type FailureRecord struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Path         string    `json:"path"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// patternSep joins patterns in the runs.patterns column. NUL cannot appear
// in a path, so it cannot appear in a pattern either.
const patternSep = "\x00"

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto makes the driver parse DATETIME columns into time.Time. The
	// path is escaped so '?', '#' and '%' in it stay part of the file name.
	dsn := "file:" + (&url.URL{Path: dbPath}).EscapedPath() + "?_loc=auto"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Recording happens from many workers; one connection serialises writers
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}

	err = nil
	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		patterns TEXT NOT NULL,
		jobs INTEGER NOT NULL,
		files INTEGER NOT NULL DEFAULT 0,
		dirs INTEGER NOT NULL DEFAULT 0,
		symlinks INTEGER NOT NULL DEFAULT 0,
		bytes_freed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		error_message TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_failures_run_id ON failures(run_id);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := h.db.Exec(schema)
	return err
}

// RecordRun inserts a finished run
func (h *HistoryDB) RecordRun(r RunRecord) error {
	query := `
	INSERT INTO runs (
		run_id, started_at, finished_at, patterns, jobs,
		files, dirs, symlinks, bytes_freed, status, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := h.db.Exec(
		query,
		r.RunID,
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
		strings.Join(r.Patterns, patternSep),
		r.Jobs,
		r.Files,
		r.Dirs,
		r.Symlinks,
		r.BytesFreed,
		r.Status,
		r.ErrorMessage,
	)
	return err
}

// RecordFailure inserts one failed path of a run. Safe for concurrent use.
func (h *HistoryDB) RecordFailure(runID, path, errorMsg string) error {
	_, err := h.db.Exec(
		"INSERT INTO failures (run_id, path, error_message) VALUES (?, ?, ?)",
		runID, path, errorMsg,
	)
	return err
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Vacuum optimizes the database (run after pruning)
func (h *HistoryDB) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}

// parseSQLiteTime parses the textual timestamps SQLite returns for
// aggregates, where the column type and with it the driver's parsing is lost
func parseSQLiteTime(s string) (time.Time, bool) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
