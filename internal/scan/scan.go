package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"shred-sage/internal/config"
	"shred-sage/internal/disk"
)

// UsageFunc reports the used percentage of the filesystem holding path
type UsageFunc func(path string) (float64, error)

// Scanner walks spool paths and selects files for shredding
type Scanner struct {
	logger  zerolog.Logger
	usage   UsageFunc
	isStale func(path string, timeout time.Duration) bool
}

// NewScanner creates a new Scanner with the given logger
func NewScanner(logger zerolog.Logger) *Scanner {
	return &Scanner{
		logger:  logger.With().Str("component", "scan").Logger(),
		usage:   diskUsedPercent,
		isStale: disk.IsNFSStale,
	}
}

// WithUsage replaces the filesystem usage probe
func (s *Scanner) WithUsage(fn UsageFunc) *Scanner {
	s.usage = fn
	return s
}

type Candidate struct {
	Path    string
	Size    int64
	ModTime time.Time
	Reason  SelectionReason
}

var errNoConfig = errors.New("nil config")

// Scan selects spool files using a logger that discards output
func Scan(cfg *config.Config, now time.Time) ([]Candidate, error) {
	return NewScanner(zerolog.Nop()).Scan(cfg, now)
}

// Scan walks every spool path and returns candidates sorted oldest first.
// A path that cannot be scanned is logged and skipped.
func (s *Scanner) Scan(cfg *config.Config, now time.Time) ([]Candidate, error) {
	if cfg == nil {
		return nil, errNoConfig
	}

	all := make([]Candidate, 0)

	for _, spool := range cfg.SpoolPaths {
		if cfg.NFSTimeout > 0 && s.isStale(spool, cfg.NFSTimeoutDuration()) {
			s.logger.Warn().Str("path", spool).Msg("skipping stale NFS spool path")
			continue
		}

		candidates, err := s.scanPath(cfg, spool, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", spool).Msg("failed to scan spool path")
			continue
		}
		all = append(all, candidates...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ModTime.Before(all[j].ModTime)
	})

	return all, nil
}

// evaluate determines why a file is selected, if at all
func evaluate(cfg *config.Config, spool string, age time.Duration, pressure *PressureReason, now time.Time) SelectionReason {
	reason := SelectionReason{
		SpoolPath:   spool,
		EvaluatedAt: now,
		Pressure:    pressure,
	}

	if cfg.AgeOffMinutes > 0 && age >= cfg.AgeOff() {
		reason.Age = &AgeReason{
			ConfiguredMinutes: cfg.AgeOffMinutes,
			ActualAgeMinutes:  int(age.Minutes()),
		}
	}

	return reason
}

func (s *Scanner) pressure(cfg *config.Config, spool string) *PressureReason {
	if cfg.MaxUsedPercent <= 0 {
		return nil
	}
	used, err := s.usage(spool)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", spool).Msg("failed to read spool usage")
		return nil
	}
	if used < cfg.MaxUsedPercent {
		return nil
	}
	return &PressureReason{ConfiguredPercent: cfg.MaxUsedPercent, ActualPercent: used}
}

func (s *Scanner) scanPath(cfg *config.Config, spool string, now time.Time) ([]Candidate, error) {
	var candidates []Candidate

	pressure := s.pressure(cfg, spool)
	if cfg.AgeOffMinutes <= 0 && pressure == nil {
		s.logger.Debug().Str("path", spool).Msg("skipping spool path, no selection conditions met")
		return candidates, nil
	}

	s.logger.Info().
		Str("path", spool).
		Bool("age_scan", cfg.AgeOffMinutes > 0).
		Bool("pressure", pressure != nil).
		Msg("starting spool scan")

	err := filepath.WalkDir(spool, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				s.logger.Warn().Str("path", path).Msg("permission denied")
				return nil
			}
			return err
		}

		if path == spool {
			return nil
		}

		if d.IsDir() {
			if !cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks, sockets and devices are never shredded from a spool
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Removed between listing and stat
			return nil
		}

		reason := evaluate(cfg, spool, now.Sub(info.ModTime()), pressure, now)
		if !reason.HasReason() {
			return nil
		}

		candidates = append(candidates, Candidate{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Reason:  reason,
		})

		s.logger.Debug().
			Str("path", path).
			Int64("size", info.Size()).
			Str("reason", reason.ToLogString()).
			Msg("file selected for shredding")

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan path %s: %w", spool, err)
	}

	s.logger.Info().Str("path", spool).Int("candidates_found", len(candidates)).Msg("spool scan complete")

	return candidates, nil
}

func diskUsedPercent(path string) (float64, error) {
	used, _, _, err := disk.GetDiskUsage(path)
	return used, err
}
