package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Service health metrics
var (
	// ServiceHealthy indicates overall daemon health status
	ServiceHealthy prometheus.Gauge

	// ServiceStartTime records daemon start timestamp
	ServiceStartTime prometheus.Gauge

	// ComponentHealthy tracks individual component health
	ComponentHealthy *prometheus.GaugeVec

	// HealthCheckDuration tracks health check execution time
	HealthCheckDuration *prometheus.HistogramVec

	// HealthCheckFailures counts consecutive failures per component
	HealthCheckFailures *prometheus.GaugeVec
)

var errHealthCheckTimeout = errors.New("health check timeout")

// HealthChecker runs periodic checks against daemon dependencies such as the
// shred utility, the history database and the spool directories
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	started       bool
}

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name         string
	LastCheck    time.Time
	Healthy      bool
	CheckFunc    func() error
	FailureCount int
	LastError    string
	Timeout      time.Duration
}

func initServiceHealthMetrics() {
	ServiceHealthy = NewGauge(
		"shredsage_daemon_healthy",
		"Daemon health status (1=healthy, 0=unhealthy).",
	)

	ServiceStartTime = NewGauge(
		"shredsage_daemon_start_timestamp_seconds",
		"Unix timestamp when daemon started.",
	)

	ComponentHealthy = NewGaugeVec(
		"shredsage_component_healthy",
		"Individual component health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shredsage_health_check_duration_seconds",
			Help:    "Time taken to execute health checks.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"component"},
	)

	HealthCheckFailures = NewGaugeVec(
		"shredsage_health_check_failures_consecutive",
		"Consecutive health check failures per component.",
		[]string{"component"},
	)
}

func registerServiceHealthMetrics() {
	prometheus.MustRegister(ServiceHealthy)
	prometheus.MustRegister(ServiceStartTime)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthCheckFailures)
}

// NewHealthChecker creates a new health checker with specified check interval
func NewHealthChecker(interval time.Duration) *HealthChecker {
	hc := &HealthChecker{
		startTime:     time.Now(),
		components:    make(map[string]*ComponentHealth),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}

	ServiceStartTime.Set(float64(hc.startTime.Unix()))
	ServiceHealthy.Set(1)

	return hc
}

// RegisterComponent adds a component health check.
// checkFunc returns nil when healthy; timeout 0 means no timeout.
func (hc *HealthChecker) RegisterComponent(name string, checkFunc func() error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:      name,
		CheckFunc: checkFunc,
		Healthy:   true,
		Timeout:   timeout,
	}

	ComponentHealthy.WithLabelValues(name).Set(1)
	HealthCheckFailures.WithLabelValues(name).Set(0)
}

// Start begins periodic health checking
// Must be called after registering all components
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.runHealthCheckLoop()
}

// Stop halts health checking and waits for completion
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = false
	hc.mu.Unlock()

	close(hc.stopCh)
	hc.wg.Wait()
}

func (hc *HealthChecker) runHealthCheckLoop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.RunChecks()

	for {
		select {
		case <-ticker.C:
			hc.RunChecks()
		case <-hc.stopCh:
			return
		}
	}
}

// RunChecks executes all registered health checks once
func (hc *HealthChecker) RunChecks() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	overallHealthy := true

	for name, comp := range hc.components {
		start := time.Now()

		var err error
		if comp.Timeout > 0 {
			err = runWithTimeout(comp.CheckFunc, comp.Timeout)
		} else {
			err = comp.CheckFunc()
		}

		HealthCheckDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		comp.LastCheck = time.Now()

		if err != nil {
			comp.Healthy = false
			comp.FailureCount++
			comp.LastError = err.Error()
			overallHealthy = false

			ComponentHealthy.WithLabelValues(name).Set(0)
			HealthCheckFailures.WithLabelValues(name).Set(float64(comp.FailureCount))
			ErrorsTotal.Inc()
		} else {
			comp.Healthy = true
			comp.FailureCount = 0
			comp.LastError = ""

			ComponentHealthy.WithLabelValues(name).Set(1)
			HealthCheckFailures.WithLabelValues(name).Set(0)
		}
	}

	if overallHealthy {
		ServiceHealthy.Set(1)
	} else {
		ServiceHealthy.Set(0)
	}
}

func runWithTimeout(fn func() error, timeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		return errHealthCheckTimeout
	}
}

// GetHealth returns current health status of all components
func (hc *HealthChecker) GetHealth() map[string]bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	out := make(map[string]bool, len(hc.components))
	for name, comp := range hc.components {
		out[name] = comp.Healthy
	}
	return out
}

// IsHealthy reports whether every component passed its last check
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, comp := range hc.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// GetUptime returns seconds since the checker was created
func (hc *HealthChecker) GetUptime() float64 {
	return time.Since(hc.startTime).Seconds()
}
