package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthChecker tracks the reachability of the pipeline's dependencies
// (Postgres/PostGIS, the optional Redis L2 cache, the property-listings
// source) and serves /healthz, /readyz and /livez.
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]*ConnStatus
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHealthChecker creates a health checker and starts its background
// system-metrics collection loop.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}
	go hc.collectSystemMetrics()
	return hc
}

// UpdateConnection records the latest status of a named dependency.
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	h.connections[name] = &ConnStatus{Name: name, Status: status, LatencyMs: latencyMs, LastError: errStr}
}

// GetHealth computes the current aggregate health status.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	errorCount := 0
	for _, conn := range h.connections {
		if conn.Status == "error" || conn.Status == "disconnected" {
			errorCount++
		}
	}
	if errorCount > 0 {
		if errorCount > len(h.connections)/2 {
			status = "unhealthy"
		} else {
			status = "degraded"
		}
	}

	connections := make(map[string]ConnStatus, len(h.connections))
	for k, v := range h.connections {
		connections[k] = *v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ServiceHealth{
		Service:     h.serviceName,
		Version:     h.version,
		Status:      status,
		UptimeSecs:  int64(time.Since(h.startTime).Seconds()),
		Connections: connections,
		Metrics: map[string]interface{}{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": m.Alloc / 1024 / 1024,
			"gc_runs":         m.NumGC,
		},
	}
}

// HealthHandler serves /healthz.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		w.Header().Set("Content-Type", "application/json")
		switch health.Status {
		case "unhealthy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadinessHandler serves /readyz.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ready": health.Status != "unhealthy", "status": health.Status})
	}
}

// LivenessHandler serves /livez.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"alive": true})
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			GoRoutines.Set(float64(runtime.NumGoroutine()))
			MemoryUsage.Set(float64(m.Alloc))
			GCRuns.Set(float64(m.NumGC))
		}
	}
}

// Shutdown stops the background metrics collection loop.
func (h *HealthChecker) Shutdown() { h.cancel() }

// ConnectionMonitor periodically probes a dependency and reports its
// status to a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     func() error
	interval      time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionMonitor creates a connection monitor for a named dependency.
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc func() error, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionMonitor{name: name, healthChecker: hc, checkFunc: checkFunc, interval: interval, ctx: ctx, cancel: cancel}
}

// Start begins the monitoring loop in a background goroutine.
func (cm *ConnectionMonitor) Start() { go cm.monitor() }

// Stop ends the monitoring loop.
func (cm *ConnectionMonitor) Stop() { cm.cancel() }

func (cm *ConnectionMonitor) monitor() {
	cm.performCheck()
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	start := time.Now()
	err := cm.checkFunc()
	latency := time.Since(start).Milliseconds()
	status := "connected"
	if err != nil {
		status = "error"
	}
	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
