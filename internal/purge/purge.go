package purge

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"shred-sage/internal/database"
	"shred-sage/internal/disk"
	"shred-sage/internal/fsops"
	"shred-sage/internal/metrics"
	"shred-sage/internal/safety"
	"shred-sage/internal/scan"
	"shred-sage/internal/shredder"
)

const (
	DefaultConcurrency = 2
	DefaultBatchSize   = 50
)

// Metrics interface for purge metrics
type Metrics interface {
	FilesShreddedTotal() prometheus.Counter
	BytesShreddedTotal() prometheus.Counter
	ErrorsTotal() prometheus.Counter
	WorkersActive() prometheus.Gauge
	BatchesTotal() *prometheus.CounterVec
	ObserveInvocation(err error, elapsed time.Duration)
	ObserveProgress(p shredder.Progress)
}

// purgeMetrics wraps global metrics to implement Metrics interface
type purgeMetrics struct{}

func (purgeMetrics) FilesShreddedTotal() prometheus.Counter { return metrics.FilesShreddedTotal }
func (purgeMetrics) BytesShreddedTotal() prometheus.Counter { return metrics.BytesShreddedTotal }
func (purgeMetrics) ErrorsTotal() prometheus.Counter        { return metrics.ErrorsTotal }
func (purgeMetrics) WorkersActive() prometheus.Gauge        { return metrics.WorkersActive }
func (purgeMetrics) BatchesTotal() *prometheus.CounterVec   { return metrics.BatchesTotal }

func (purgeMetrics) ObserveInvocation(err error, elapsed time.Duration) {
	metrics.RecordInvocation(err, elapsed)
}

func (purgeMetrics) ObserveProgress(p shredder.Progress) {
	metrics.RecordProgress(p)
}

// Throttler paces batch submission, see limiter.CPULimiter
type Throttler interface {
	Throttle()
}

// Summary totals one purge run
type Summary struct {
	RunID    string
	Shredded int
	Bytes    int64
	DryRun   int
	Skipped  int
	Failed   int
	Batches  int
	Duration time.Duration
}

// Purger securely deletes scan candidates in directory-grouped batches
type Purger struct {
	logger      zerolog.Logger
	metrics     Metrics
	db          *database.HistoryDB
	dryRun      bool
	validator   *safety.Validator
	shredder    fsops.Shredder
	throttle    Throttler
	concurrency int
	batchSize   int
	nfsTimeout  time.Duration
}

type Option func(*Purger)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Purger) { p.logger = logger }
}

// WithHistory records one row per file. A nil db disables recording.
func WithHistory(db *database.HistoryDB) Option {
	return func(p *Purger) { p.db = db }
}

func WithDryRun(dryRun bool) Option {
	return func(p *Purger) { p.dryRun = dryRun }
}

func WithMetrics(m Metrics) Option {
	return func(p *Purger) { p.metrics = m }
}

func WithThrottle(t Throttler) Option {
	return func(p *Purger) { p.throttle = t }
}

// WithWorkers sets the number of concurrent invocations and files per invocation.
// Values below 1 keep the defaults.
func WithWorkers(concurrency, batchSize int) Option {
	return func(p *Purger) {
		if concurrency > 0 {
			p.concurrency = concurrency
		}
		if batchSize > 0 {
			p.batchSize = batchSize
		}
	}
}

// WithNFSTimeout skips candidates on stale NFS mounts. Zero disables the check.
func WithNFSTimeout(d time.Duration) Option {
	return func(p *Purger) { p.nfsTimeout = d }
}

// New creates a Purger. A nil validator enforces only the protected path list.
func New(s fsops.Shredder, validator *safety.Validator, opts ...Option) *Purger {
	if validator == nil {
		validator = safety.NewValidator(nil, nil)
	}
	p := &Purger{
		logger:      zerolog.Nop(),
		metrics:     purgeMetrics{},
		validator:   validator,
		shredder:    s,
		concurrency: DefaultConcurrency,
		batchSize:   DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Purge validates, batches and shreds candidates. Batch failures do not stop
// other batches; they are returned together once every batch has finished.
func (p *Purger) Purge(ctx context.Context, candidates []scan.Candidate) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.New().String()}
	log := p.logger.With().Str("run_id", summary.RunID).Logger()

	log.Info().Int("total_candidates", len(candidates)).Bool("dry_run", p.dryRun).Msg("starting purge")

	var valid []scan.Candidate
	for _, cand := range candidates {
		if reason := p.skipReason(cand); reason != "" {
			log.Warn().Str("path", cand.Path).Str("reason", reason).Msg("skipping candidate")
			p.record(log, database.ShredRecord{
				RunID:  summary.RunID,
				Action: database.ActionSkip,
				Path:   cand.Path,
				Size:   cand.Size,
				Reason: reason,
			})
			p.metrics.ErrorsTotal().Inc()
			summary.Skipped++
			continue
		}
		valid = append(valid, cand)
	}

	if p.dryRun {
		for _, cand := range valid {
			log.Info().Str("path", cand.Path).Int64("size", cand.Size).Msg("[DRY RUN] would shred file")
			rec := recordFor(summary.RunID, database.ActionDryRun, cand)
			p.record(log, rec)
			summary.DryRun++
		}
		summary.Duration = time.Since(start)
		p.logSummary(log, summary)
		return summary, nil
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
		group  errgroup.Group
	)
	group.SetLimit(p.concurrency)

	for i, batch := range Batches(valid, p.batchSize) {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && p.throttle != nil {
			p.throttle.Throttle()
		}
		summary.Batches++
		batch := batch

		group.Go(func() error {
			shredded, bytes, err := p.runBatch(ctx, log, summary.RunID, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed += len(batch)
				result = multierror.Append(result, err)
				return nil
			}
			summary.Shredded += shredded
			summary.Bytes += bytes
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "purge interrupted"))
	}

	summary.Duration = time.Since(start)
	p.logSummary(log, summary)

	return summary, result.ErrorOrNil()
}

func (p *Purger) skipReason(cand scan.Candidate) string {
	if err := p.validator.ValidateShredTarget(cand.Path); err != nil {
		return err.Error()
	}
	if p.nfsTimeout > 0 && disk.IsNFSStale(cand.Path, p.nfsTimeout) {
		return "nfs_stale"
	}
	return ""
}

// runBatch shreds files that share a directory in one utility invocation
func (p *Purger) runBatch(ctx context.Context, log zerolog.Logger, runID string, batch []scan.Candidate) (int, int64, error) {
	p.metrics.WorkersActive().Inc()
	defer p.metrics.WorkersActive().Dec()

	paths := make([]string, len(batch))
	for i, cand := range batch {
		paths[i] = cand.Path
	}
	dir := filepath.Dir(paths[0])

	// Status events arrive sequentially from one parser
	passes := make(map[string]int, len(batch))
	status := func(ev shredder.Progress) {
		p.metrics.ObserveProgress(ev)
		if ev.Action == shredder.Overwriting {
			passes[filepath.Join(ev.Directory, ev.FileName)]++
		}
		log.Debug().
			Str("action", string(ev.Action)).
			Str("file", ev.FileName).
			Float64("fraction", ev.Fraction).
			Msg("progress")
	}

	start := time.Now()
	_, err := p.shredder.ShredFiles(ctx, paths, status)
	elapsed := time.Since(start)
	p.metrics.ObserveInvocation(err, elapsed)

	if err != nil {
		log.Error().Err(err).Str("directory", dir).Int("files", len(batch)).Msg("batch failed")
		p.metrics.ErrorsTotal().Inc()
		p.metrics.BatchesTotal().WithLabelValues("failed").Inc()
		for _, cand := range batch {
			rec := recordFor(runID, database.ActionError, cand)
			rec.ExitCode = shredder.ExitCode(err)
			rec.Passes = passes[filepath.Clean(cand.Path)]
			rec.DurationMs = elapsed.Milliseconds()
			rec.ErrorMessage = err.Error()
			p.record(log, rec)
		}
		return 0, 0, errors.Errorf("batch in %s: %w", dir, err)
	}

	var bytes int64
	for _, cand := range batch {
		rec := recordFor(runID, database.ActionShred, cand)
		rec.Passes = passes[filepath.Clean(cand.Path)]
		rec.DurationMs = elapsed.Milliseconds()
		p.record(log, rec)
		bytes += cand.Size
		log.Info().Str("path", cand.Path).Int64("size", cand.Size).Str("reason", rec.Reason).Msg("shredded")
	}

	p.metrics.FilesShreddedTotal().Add(float64(len(batch)))
	p.metrics.BytesShreddedTotal().Add(float64(bytes))
	p.metrics.BatchesTotal().WithLabelValues("success").Inc()

	return len(batch), bytes, nil
}

func recordFor(runID, action string, cand scan.Candidate) database.ShredRecord {
	rec := database.ShredRecord{
		RunID:  runID,
		Action: action,
		Path:   cand.Path,
		Size:   cand.Size,
	}
	if cand.Reason.HasReason() {
		rec.Reason = cand.Reason.ToLogString()
		rec.PrimaryReason = cand.Reason.GetPrimaryReason()
	}
	return rec
}

func (p *Purger) record(log zerolog.Logger, rec database.ShredRecord) {
	if p.db == nil {
		return
	}
	// History failures never fail the purge
	if err := p.db.RecordShred(rec); err != nil {
		log.Error().Err(err).Str("path", rec.Path).Msg("failed to record history")
	}
}

func (p *Purger) logSummary(log zerolog.Logger, s Summary) {
	log.Info().
		Int("shredded", s.Shredded).
		Int("dry_run", s.DryRun).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("batches", s.Batches).
		Int64("bytes", s.Bytes).
		Dur("duration", s.Duration).
		Msg("purge complete")
}

// Batches groups candidates by parent directory, in order of first
// appearance, and splits each group into chunks of at most size files.
func Batches(candidates []scan.Candidate, size int) [][]scan.Candidate {
	if size < 1 {
		size = 1
	}

	var order []string
	groups := make(map[string][]scan.Candidate)
	for _, cand := range candidates {
		dir := filepath.Dir(cand.Path)
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], cand)
	}

	var out [][]scan.Candidate
	for _, dir := range order {
		group := groups[dir]
		for len(group) > size {
			out = append(out, group[:size:size])
			group = group[size:]
		}
		out = append(out, group)
	}
	return out
}
