package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shred-sage/internal/disk"
)

// Daemon subsystem metrics
var (
	// ErrorsTotal tracks total errors encountered by the daemon
	ErrorsTotal prometheus.Counter

	// CycleDuration tracks how long scan and shred cycles take
	CycleDuration prometheus.Histogram

	// CycleLastRunTimestamp records the Unix timestamp of the last cycle
	CycleLastRunTimestamp prometheus.Gauge

	// SpoolFreeBytes tracks free space on the filesystem of each spool path
	SpoolFreeBytes *prometheus.GaugeVec

	// SpoolUsedPercent tracks used space percentage of each spool path's filesystem
	SpoolUsedPercent *prometheus.GaugeVec
)

func initDaemonMetrics() {
	ErrorsTotal = NewCounter(
		"shredsage_daemon_errors_total",
		"Total number of errors encountered by shred-sage.",
	)

	CycleDuration = NewDurationHistogram(
		"shredsage_cycle_duration_seconds",
		"Duration of a complete scan and shred cycle.",
	)

	CycleLastRunTimestamp = NewGauge(
		"shredsage_cycle_last_run_timestamp",
		"Unix timestamp of the last scan and shred cycle.",
	)

	SpoolFreeBytes = NewSizeGaugeVec(
		"shredsage_spool_free_bytes",
		"Free space on the filesystem containing the spool path.",
		[]string{"path"},
	)

	SpoolUsedPercent = NewGaugeVec(
		"shredsage_spool_used_percent",
		"Used space percentage of the filesystem containing the spool path.",
		[]string{"path"},
	)
}

func registerDaemonMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CycleLastRunTimestamp)
	prometheus.MustRegister(SpoolFreeBytes)
	prometheus.MustRegister(SpoolUsedPercent)
}

// RecordCycleRun stamps the start of a cycle
func RecordCycleRun() {
	CycleLastRunTimestamp.Set(float64(time.Now().Unix()))
}

// UpdateSpoolMetrics publishes filesystem stats for a spool path
func UpdateSpoolMetrics(path string, stats disk.FSStats) {
	SpoolFreeBytes.WithLabelValues(path).Set(float64(stats.FreeBytes))
	SpoolUsedPercent.WithLabelValues(path).Set(stats.UsedPercent)
}
