package scheduler

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"shred-sage/internal/config"
	"shred-sage/internal/disk"
	"shred-sage/internal/limiter"
	"shred-sage/internal/metrics"
	"shred-sage/internal/purge"
	"shred-sage/internal/scan"
)

// DefaultDebounce is how long spool events settle before a cycle runs
const DefaultDebounce = 2 * time.Second

var errNoConfig = errors.Base("nil config")

// Deps is everything a cycle needs
type Deps struct {
	Config  *config.Config
	Scanner *scan.Scanner
	Purger  *purge.Purger
	Limiter *limiter.CPULimiter // optional
	Logger  zerolog.Logger

	// Trigger requests an immediate cycle, see metrics.Trigger
	Trigger <-chan struct{}
	// Debounce defaults to DefaultDebounce; negative disables spool watching
	Debounce time.Duration
}

// RunOnce runs one scan and shred cycle
func RunOnce(ctx context.Context, d Deps) (purge.Summary, error) {
	if d.Config == nil {
		return purge.Summary{}, errNoConfig
	}
	if err := ctx.Err(); err != nil {
		return purge.Summary{}, err
	}
	if d.Scanner == nil {
		d.Scanner = scan.NewScanner(d.Logger)
	}

	start := time.Now()
	metrics.RecordCycleRun()

	updateSpoolMetrics(d.Config, d.Logger)

	if d.Limiter != nil {
		d.Limiter.Throttle()
	}

	candidates, err := d.Scanner.Scan(d.Config, start)
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return purge.Summary{}, errors.WithMessage(err, "scan")
	}

	if d.Limiter != nil {
		d.Limiter.Throttle()
	}

	summary, err := d.Purger.Purge(ctx, candidates)

	elapsed := time.Since(start)
	metrics.CycleDuration.Observe(elapsed.Seconds())

	d.Logger.Info().
		Int("candidates", len(candidates)).
		Int("shredded", summary.Shredded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int64("bytes", summary.Bytes).
		Dur("duration", elapsed).
		Msg("cycle complete")

	return summary, err
}

// Run cycles until ctx is done: once at start, then on every tick, trigger or
// settled burst of spool events. Cycle errors are logged and do not stop the loop.
func Run(ctx context.Context, d Deps) error {
	if d.Config == nil {
		return errNoConfig
	}

	cycle := func(source string) {
		d.Logger.Debug().Str("source", source).Msg("starting cycle")
		if _, err := RunOnce(ctx, d); err != nil && ctx.Err() == nil {
			d.Logger.Error().Err(err).Str("source", source).Msg("cycle failed")
		}
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if d.Debounce >= 0 {
		w, err := watchSpools(d.Config, d.Logger)
		if err != nil {
			d.Logger.Warn().Err(err).Msg("spool watching disabled")
		} else {
			defer w.Close()
			events, watchErrs = w.Events, w.Errors
		}
	}
	debounce := d.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	// Watch before the first cycle so no spool event is missed
	cycle("startup")

	interval := d.Config.Interval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			d.Logger.Info().Msg("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			cycle("interval")
		case <-d.Trigger:
			cycle("trigger")
		case ev := <-events:
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && settle == nil {
				settle = time.After(debounce)
			}
		case <-settle:
			settle = nil
			cycle("watch")
		case err := <-watchErrs:
			d.Logger.Warn().Err(err).Msg("spool watch error")
		}
	}
}

func updateSpoolMetrics(cfg *config.Config, logger zerolog.Logger) {
	for _, path := range cfg.SpoolPaths {
		stats, err := disk.Stat(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to stat spool filesystem")
			continue
		}
		metrics.UpdateSpoolMetrics(path, stats)
	}
}

// watchSpools watches every spool path, and every subdirectory when scanning is recursive
func watchSpools(cfg *config.Config, logger zerolog.Logger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	watched := 0
	for _, spool := range cfg.SpoolPaths {
		if !cfg.Recursive {
			if err := w.Add(spool); err != nil {
				logger.Warn().Err(err).Str("path", spool).Msg("cannot watch spool")
				continue
			}
			watched++
			continue
		}
		_ = filepath.WalkDir(spool, func(path string, entry fs.DirEntry, err error) error {
			if err != nil || !entry.IsDir() {
				return nil
			}
			if err := w.Add(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("cannot watch spool")
				return nil
			}
			watched++
			return nil
		})
	}

	if watched == 0 {
		w.Close()
		return nil, errors.New("no spool paths could be watched")
	}
	return w, nil
}
