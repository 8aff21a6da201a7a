package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shred-sage/internal/shredder"
)

// Invocation outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeUtilityError = "utility_error"
	OutcomeSpawnError   = "spawn_error"
	OutcomeInputError   = "input_error"
)

var Outcomes = []string{OutcomeSuccess, OutcomeUtilityError, OutcomeSpawnError, OutcomeInputError}

// Shred subsystem metrics
var (
	// InvocationsTotal counts utility invocations by outcome
	InvocationsTotal *prometheus.CounterVec

	// FilesShreddedTotal counts files the utility finished without error
	FilesShreddedTotal prometheus.Counter

	// BytesShreddedTotal counts the sizes of those files
	BytesShreddedTotal prometheus.Counter

	// OverwritePassesTotal counts overwrite progress events
	OverwritePassesTotal prometheus.Counter

	// RenamesTotal counts rename progress events
	RenamesTotal prometheus.Counter

	// InvocationDuration tracks wall time per utility invocation
	InvocationDuration prometheus.Histogram

	// WorkersActive tracks concurrently running invocations
	WorkersActive prometheus.Gauge

	// BatchesTotal counts purge batches by status
	BatchesTotal *prometheus.CounterVec
)

func initShredMetrics() {
	InvocationsTotal = NewCounterVec(
		"shredsage_invocations_total",
		"Total shred utility invocations by outcome.",
		[]string{"outcome"},
	)

	FilesShreddedTotal = NewCounter(
		"shredsage_files_shredded_total",
		"Total files securely deleted.",
	)

	BytesShreddedTotal = NewBytesCounter(
		"shredsage_bytes_shredded_total",
		"Total bytes of files securely deleted.",
	)

	OverwritePassesTotal = NewCounter(
		"shredsage_overwrite_passes_total",
		"Total overwrite passes reported by the shred utility.",
	)

	RenamesTotal = NewCounter(
		"shredsage_renames_total",
		"Total obfuscating renames reported by the shred utility.",
	)

	InvocationDuration = NewDurationHistogram(
		"shredsage_invocation_duration_seconds",
		"Duration of a single shred utility invocation.",
	)

	WorkersActive = NewGauge(
		"shredsage_workers_active",
		"Number of shred invocations currently running.",
	)

	BatchesTotal = NewCounterVec(
		"shredsage_batches_total",
		"Total purge batches by status.",
		[]string{"status"},
	)
}

func registerShredMetrics() {
	prometheus.MustRegister(InvocationsTotal)
	prometheus.MustRegister(FilesShreddedTotal)
	prometheus.MustRegister(BytesShreddedTotal)
	prometheus.MustRegister(OverwritePassesTotal)
	prometheus.MustRegister(RenamesTotal)
	prometheus.MustRegister(InvocationDuration)
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(BatchesTotal)
}

// OutcomeOf classifies the error returned by a shred call
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case shredder.IsInputError(err):
		return OutcomeInputError
	case shredder.IsSpawnError(err):
		return OutcomeSpawnError
	default:
		return OutcomeUtilityError
	}
}

// RecordInvocation records the outcome and duration of one utility run
func RecordInvocation(err error, elapsed time.Duration) {
	InvocationsTotal.WithLabelValues(OutcomeOf(err)).Inc()
	InvocationDuration.Observe(elapsed.Seconds())
}

// RecordProgress counts a progress event by action
func RecordProgress(p shredder.Progress) {
	switch p.Action {
	case shredder.Overwriting:
		OverwritePassesTotal.Inc()
	case shredder.Renaming:
		RenamesTotal.Inc()
	}
}

// RecordShredded adds completed files and their total size
func RecordShredded(files int, bytes int64) {
	FilesShreddedTotal.Add(float64(files))
	BytesShreddedTotal.Add(float64(bytes))
}
