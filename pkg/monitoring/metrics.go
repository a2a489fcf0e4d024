package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceName is the name reported in metrics and health responses.
const ServiceName = "geoscore"

var (
	TileBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoscore_tile_builds_total",
			Help: "Total number of tile builds attempted, by kind and status",
		},
		[]string{"kind", "status"},
	)

	TileBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoscore_tile_build_duration_seconds",
			Help:    "Tile build duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"kind"},
	)

	POIStoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoscore_poi_store_requests_total",
			Help: "Total number of POI store fetches, by status",
		},
		[]string{"status"},
	)

	POIStoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoscore_poi_store_request_duration_seconds",
			Help:    "POI store fetch duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"status"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoscore_cache_hits_total",
			Help: "Total number of cache hits, by tier and kind",
		},
		[]string{"tier", "kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoscore_cache_misses_total",
			Help: "Total number of cache misses, by tier and kind",
		},
		[]string{"tier", "kind"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoscore_cache_size",
			Help: "Current number of entries in the L1 cache",
		},
		[]string{"kind"},
	)

	CacheInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoscore_cache_inflight_builds",
			Help: "Number of tile builds currently in flight behind single-flight",
		},
		[]string{"kind"},
	)

	SingleFlightCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoscore_singleflight_coalesced_total",
			Help: "Total number of callers that joined an in-flight build instead of starting their own",
		},
		[]string{"kind"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoscore_errors_total",
			Help: "Total number of errors, by component and kind",
		},
		[]string{"component", "kind"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoscore_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "geoscore_goroutines", Help: "Number of goroutines"},
	)
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "geoscore_memory_usage_bytes", Help: "Memory usage in bytes"},
	)
	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "geoscore_gc_runs_total", Help: "Total number of garbage collection runs"},
	)
)

// ServiceHealth is the shape returned by /healthz.
type ServiceHealth struct {
	Service     string                 `json:"service"`
	Version     string                 `json:"version"`
	Status      string                 `json:"status"`
	UptimeSecs  int64                  `json:"uptime_seconds"`
	Connections map[string]ConnStatus  `json:"connections"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
}

// ConnStatus describes one dependency's reachability (database, L2 cache,
// listings source).
type ConnStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func RecordTileBuild(kind string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	TileBuildsTotal.WithLabelValues(kind, status).Inc()
	TileBuildDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordPOIStoreRequest(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	POIStoreRequestsTotal.WithLabelValues(status).Inc()
	POIStoreRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordCacheHit(tier, kind string)  { CacheHits.WithLabelValues(tier, kind).Inc() }
func RecordCacheMiss(tier, kind string) { CacheMisses.WithLabelValues(tier, kind).Inc() }
func UpdateCacheSize(kind string, size int) {
	CacheSize.WithLabelValues(kind).Set(float64(size))
}
func RecordSingleFlightCoalesced(kind string) { SingleFlightCoalesced.WithLabelValues(kind).Inc() }
func RecordError(component, kind string)      { ErrorsTotal.WithLabelValues(component, kind).Inc() }
