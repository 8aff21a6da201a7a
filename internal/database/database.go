package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded per file
const (
	ActionShred  = "SHRED"
	ActionDryRun = "DRY_RUN"
	ActionSkip   = "SKIP"
	ActionError  = "ERROR"
)

// HistoryDB manages the SQLite database for shred history
type HistoryDB struct {
	db *sql.DB
}

// ShredRecord represents the outcome for a single file
type ShredRecord struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	Path          string    `json:"path"`
	FileName      string    `json:"file_name"`
	Directory     string    `json:"directory"`
	Size          int64     `json:"size"`
	Reason        string    `json:"reason"`
	PrimaryReason string    `json:"primary_reason"`
	ExitCode      int       `json:"exit_code"`
	Passes        int       `json:"passes"`
	DurationMs    int64     `json:"duration_ms"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing, _busy_timeout waits out writer locks
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Forces file creation, unlike Ping
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency (multiple readers, one writer)
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

	return hdb, nil
}

func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shreds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		directory TEXT,
		size INTEGER NOT NULL DEFAULT 0,

		reason TEXT,
		primary_reason TEXT,

		exit_code INTEGER NOT NULL DEFAULT 0,
		passes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON shreds(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON shreds(action);
	CREATE INDEX IF NOT EXISTS idx_path ON shreds(path);
	CREATE INDEX IF NOT EXISTS idx_run_id ON shreds(run_id);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordShred inserts one file outcome. A zero Timestamp means now.
// FileName and Directory are derived from Path when empty.
func (d *HistoryDB) RecordShred(rec ShredRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.FileName == "" {
		rec.FileName = filepath.Base(rec.Path)
	}
	if rec.Directory == "" {
		rec.Directory = filepath.Dir(rec.Path)
	}

	query := `
	INSERT INTO shreds (
		run_id, timestamp, action, path, file_name, directory, size,
		reason, primary_reason, exit_code, passes, duration_ms, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		rec.RunID,
		rec.Timestamp.UTC(),
		rec.Action,
		rec.Path,
		rec.FileName,
		rec.Directory,
		rec.Size,
		nullString(rec.Reason),
		nullString(rec.PrimaryReason),
		rec.ExitCode,
		rec.Passes,
		rec.DurationMs,
		nullString(rec.ErrorMessage),
	)

	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ping checks the connection, used by the daemon health check
func (d *HistoryDB) Ping() error {
	return d.db.Ping()
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *HistoryDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM shreds").Scan(&totalRecords); err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	// Aggregates lose the column type, so the driver hands back text
	var oldest, newest sql.NullString
	err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM shreds").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseSQLiteTime(oldest); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseSQLiteTime(newest); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
