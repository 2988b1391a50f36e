package database

import (
	"database/sql"
	"strings"
	"time"
)

// GetRecentRuns returns the N most recent runs, newest first
func (h *HistoryDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	query := `
	SELECT run_id, started_at, finished_at, patterns, jobs,
	       files, dirs, symlinks, bytes_freed, status, error_message
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`

	return h.queryRuns(query, limit)
}

// GetRun returns a single run by ID
func (h *HistoryDB) GetRun(runID string) (*RunRecord, error) {
	query := `
	SELECT run_id, started_at, finished_at, patterns, jobs,
	       files, dirs, symlinks, bytes_freed, status, error_message
	FROM runs
	WHERE run_id = ?
	`

	runs, err := h.queryRuns(query, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &runs[0], nil
}

// GetFailures returns the failed paths of a run in the order they were recorded
func (h *HistoryDB) GetFailures(runID string) ([]FailureRecord, error) {
	rows, err := h.db.Query(`
		SELECT id, run_id, path, error_message, created_at
		FROM failures
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FailureRecord
	for rows.Next() {
		var r FailureRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Path, &r.ErrorMessage, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// HistoryStats holds totals over every recorded run
type HistoryStats struct {
	TotalRuns       int       `json:"total_runs"`
	FailedRuns      int       `json:"failed_runs"`
	TotalFiles      int64     `json:"total_files"`
	TotalDirs       int64     `json:"total_dirs"`
	TotalSymlinks   int64     `json:"total_symlinks"`
	TotalBytesFreed int64     `json:"total_bytes_freed"`
	TotalFailures   int64     `json:"total_failures"`
	FirstRun        time.Time `json:"first_run,omitempty"`
	LastRun         time.Time `json:"last_run,omitempty"`
}

// GetStats returns aggregated statistics over all runs
func (h *HistoryDB) GetStats() (*HistoryStats, error) {
	stats := &HistoryStats{}

	var first, last sql.NullString
	err := h.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = ? THEN 1 END),
			COALESCE(SUM(files), 0),
			COALESCE(SUM(dirs), 0),
			COALESCE(SUM(symlinks), 0),
			COALESCE(SUM(bytes_freed), 0),
			MIN(started_at),
			MAX(started_at)
		FROM runs
	`, StatusFailed).Scan(
		&stats.TotalRuns, &stats.FailedRuns,
		&stats.TotalFiles, &stats.TotalDirs, &stats.TotalSymlinks, &stats.TotalBytesFreed,
		&first, &last,
	)
	if err != nil {
		return nil, err
	}

	if first.Valid {
		stats.FirstRun, _ = parseSQLiteTime(first.String)
	}
	if last.Valid {
		stats.LastRun, _ = parseSQLiteTime(last.String)
	}

	if err := h.db.QueryRow("SELECT COUNT(*) FROM failures").Scan(&stats.TotalFailures); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRuns removes runs started more than olderThanDays ago together
// with their failures
func (h *HistoryDB) DeleteOldRuns(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	tx, err := h.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		DELETE FROM failures WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, err
	}

	result, err := tx.Exec("DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// queryRuns executes a runs query and scans the results
func (h *HistoryDB) queryRuns(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var patterns string
		var errMsg sql.NullString

		err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.FinishedAt, &patterns, &r.Jobs,
			&r.Files, &r.Dirs, &r.Symlinks, &r.BytesFreed, &r.Status, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		if patterns != "" {
			r.Patterns = strings.Split(patterns, patternSep)
		}
		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
