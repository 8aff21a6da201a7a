package metrics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Core synchronization primitives
	initOnce       sync.Once
	serverMutex    sync.Mutex
	currentSrv     *http.Server
	currentAddr    string
	triggerChannel chan struct{}

	// Global health checker instance
	globalHealthChecker *HealthChecker
	healthMutex         sync.RWMutex
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initShredMetrics()
		initDaemonMetrics()
		initAPIMetrics()
		initServiceHealthMetrics()

		registerShredMetrics()
		registerDaemonMetrics()
		registerAPIMetrics()
		registerServiceHealthMetrics()

		// Present in /metrics before the first cycle
		CycleLastRunTimestamp.Set(0)
		for _, outcome := range Outcomes {
			InvocationsTotal.WithLabelValues(outcome)
		}

		triggerChannel = make(chan struct{}, 1)
	})
}

// Trigger returns the channel that receives a value for every accepted POST /trigger
func Trigger() <-chan struct{} {
	return triggerChannel
}

// RequestCycle queues a shred cycle. Returns false if one is already queued.
func RequestCycle() bool {
	select {
	case triggerChannel <- struct{}{}:
		return true
	default:
		return false
	}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", instrument("metrics", promhttp.Handler()))
	mux.Handle("/health", instrument("health", http.HandlerFunc(handleHealth)))
	mux.Handle("/trigger", instrument("trigger", http.HandlerFunc(handleTrigger)))
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	healthMutex.RLock()
	hc := globalHealthChecker
	healthMutex.RUnlock()

	body := map[string]any{"status": "ok", "healthy": true}
	status := http.StatusOK
	if hc != nil {
		body["components"] = hc.GetHealth()
		body["uptime_seconds"] = hc.GetUptime()
		if !hc.IsHealthy() {
			body["status"] = "degraded"
			body["healthy"] = false
			status = http.StatusServiceUnavailable
		}
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if triggerChannel == nil {
		http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
		return
	}
	if !RequestCycle() {
		http.Error(w, "Shred cycle already queued", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Shred cycle triggered"))
}

// StartServer starts the metrics HTTP server on addr.
// Exposes /metrics (Prometheus), /health, and /trigger endpoints.
func StartServer(addr string, logger zerolog.Logger) error {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Info().Str("addr", currentAddr).Msg("metrics server already running")
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           newMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv
	currentAddr = ln.Addr().String()

	logger.Info().Str("addr", currentAddr).Msg("metrics server listening")
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
			ErrorsTotal.Inc()
		}
	}()

	return nil
}

// Addr returns the listen address of the running server, or "" if none
func Addr() string {
	serverMutex.Lock()
	defer serverMutex.Unlock()
	return currentAddr
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger zerolog.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	healthMutex.Lock()
	if globalHealthChecker != nil {
		globalHealthChecker.Stop()
		globalHealthChecker = nil
	}
	healthMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
		ErrorsTotal.Inc()
	}
	currentSrv = nil
	currentAddr = ""
}

// SetHealthChecker sets the global health checker instance
func SetHealthChecker(hc *HealthChecker) {
	healthMutex.Lock()
	defer healthMutex.Unlock()
	globalHealthChecker = hc
}

// GetHealthChecker returns the global health checker instance
func GetHealthChecker() *HealthChecker {
	healthMutex.RLock()
	defer healthMutex.RUnlock()
	return globalHealthChecker
}
