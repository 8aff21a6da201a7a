package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shred-sage/internal/config"
)

const (
	defaultLogDir = "/var/log/shred-sage"
	logFile       = "shred-sage.log"
)

// NewWriter creates a logger writing human-readable lines to w
func NewWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// NewWithConfig creates a logger that writes to stdout and to a rotated file in
// the configured log directory. If the directory is unusable only stdout is used.
func NewWithConfig(cfg *config.Config) zerolog.Logger {
	dir := defaultLogDir
	rotateDays := 30
	level := zerolog.InfoLevel
	if cfg != nil {
		if cfg.Logging.Dir != "" {
			dir = cfg.Logging.Dir
		}
		if cfg.Logging.RotationDays > 0 {
			rotateDays = cfg.Logging.RotationDays
		}
		level = ParseLevel(cfg.Logging.Level)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: !isTerminal(os.Stdout)}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger := zerolog.New(console).Level(level).With().Timestamp().Logger()
		logger.Warn().Err(err).Str("dir", dir).Msg("failed to ensure log directory")
		return logger
	}

	filePath := filepath.Join(dir, logFile)
	rotateLogsIfNeeded(filePath, rotateDays)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger := zerolog.New(console).Level(level).With().Timestamp().Logger()
		logger.Warn().Err(err).Str("file", filePath).Msg("failed to open log file")
		return logger
	}

	// The file gets JSON lines, the terminal gets the console format
	mw := zerolog.MultiLevelWriter(console, f)
	return zerolog.New(mw).Level(level).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// rotateLogsIfNeeded rotates the log file once it is older than rotationDays
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		return
	}

	cleanupOldLogs(logPath, rotationDays)
}

// cleanupOldLogs removes rotated log files older than rotationDays
func cleanupOldLogs(logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			_ = os.Remove(filepath.Join(logDir, entry.Name()))
		}
	}
}
