package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, run_id, timestamp, action, path, file_name, directory, size,
	       reason, primary_reason, exit_code, passes, duration_ms, error_message, created_at
	FROM shreds
`

// GetRecentShreds returns the N most recent records
func (d *HistoryDB) GetRecentShreds(limit int) ([]ShredRecord, error) {
	return d.queryShreds(selectColumns+`ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// GetShredsByDateRange returns records within a time range
func (d *HistoryDB) GetShredsByDateRange(start, end time.Time) ([]ShredRecord, error) {
	return d.queryShreds(selectColumns+`WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC, id DESC`,
		start.UTC(), end.UTC())
}

// GetShredsByAction returns records filtered by action type
func (d *HistoryDB) GetShredsByAction(action string) ([]ShredRecord, error) {
	return d.queryShreds(selectColumns+`WHERE action = ? ORDER BY timestamp DESC, id DESC`, action)
}

// GetShredsByPath returns records whose path matches a SQL LIKE pattern
func (d *HistoryDB) GetShredsByPath(pathPattern string) ([]ShredRecord, error) {
	return d.queryShreds(selectColumns+`WHERE path LIKE ? ORDER BY timestamp DESC, id DESC`, pathPattern)
}

// GetShredsByRun returns every record of one purge run in insertion order
func (d *HistoryDB) GetShredsByRun(runID string) ([]ShredRecord, error) {
	return d.queryShreds(selectColumns+`WHERE run_id = ? ORDER BY id`, runID)
}

// GetTotalBytesShredded returns total bytes shredded in a time range
func (d *HistoryDB) GetTotalBytesShredded(start, end time.Time) (int64, error) {
	var total int64
	err := d.db.QueryRow(`
	SELECT COALESCE(SUM(size), 0)
	FROM shreds
	WHERE action = ? AND timestamp BETWEEN ? AND ?
	`, ActionShred, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// GetShredCountByReason returns shredded file counts grouped by primary reason
func (d *HistoryDB) GetShredCountByReason(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT COALESCE(primary_reason, ''), COUNT(*)
	FROM shreds
	WHERE action = ? AND timestamp >= ?
	GROUP BY primary_reason
	`, ActionShred, since.UTC())
}

// GetShredCountByAction returns record counts grouped by action
func (d *HistoryDB) GetShredCountByAction(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT action, COUNT(*)
	FROM shreds
	WHERE timestamp >= ?
	GROUP BY action
	`, since.UTC())
}

func (d *HistoryDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// ShredStats holds aggregated statistics
type ShredStats struct {
	TotalShredded     int            `json:"total_shredded"`
	TotalDryRun       int            `json:"total_dry_run"`
	TotalSkipped      int            `json:"total_skipped"`
	TotalErrors       int            `json:"total_errors"`
	TotalBytes        int64          `json:"total_bytes"`
	TotalRuns         int            `json:"total_runs"`
	AverageDurationMs float64        `json:"average_duration_ms"`
	ByReason          map[string]int `json:"by_reason"`
	ByAction          map[string]int `json:"by_action"`
	StartDate         time.Time      `json:"start_date"`
	EndDate           time.Time      `json:"end_date"`
}

// GetShredStats returns statistics for the last days days
func (d *HistoryDB) GetShredStats(days int) (*ShredStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &ShredStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'SHRED' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COUNT(DISTINCT run_id),
			COALESCE(AVG(CASE WHEN action = 'SHRED' THEN duration_ms END), 0)
		FROM shreds
		WHERE timestamp >= ?
	`, since.UTC()).Scan(
		&stats.TotalShredded, &stats.TotalDryRun, &stats.TotalSkipped,
		&stats.TotalErrors, &stats.TotalRuns, &stats.AverageDurationMs,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalBytes, err = d.GetTotalBytesShredded(since, now); err != nil {
		return nil, err
	}
	if stats.ByReason, err = d.GetShredCountByReason(since); err != nil {
		return nil, err
	}
	if stats.ByAction, err = d.GetShredCountByAction(since); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than the given number of days
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM shreds WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (d *HistoryDB) queryShreds(query string, args ...interface{}) ([]ShredRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ShredRecord
	for rows.Next() {
		var r ShredRecord
		var fileName, directory, reason, primary, errMsg sql.NullString
		var createdAt sql.NullTime

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Path, &fileName, &directory, &r.Size,
			&reason, &primary, &r.ExitCode, &r.Passes, &r.DurationMs, &errMsg, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		r.FileName = fileName.String
		r.Directory = directory.String
		r.Reason = reason.String
		r.PrimaryReason = primary.String
		r.ErrorMessage = errMsg.String
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
