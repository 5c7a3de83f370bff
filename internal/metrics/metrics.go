package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomanh3_events_total",
		Help: "Inbound events handled by kind",
	}, []string{"kind"})
	BenignErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomanh3_benign_errors_total",
		Help: "Store operations that became no-ops (duplicate id, not found, bad resolution)",
	}, []string{"kind"})
	TessellateDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geomanh3_tessellate_duration_ms",
		Help:    "Cover duration per feature in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	TessellateCells = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geomanh3_tessellate_cells",
		Help:    "Cells produced per feature cover",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	TessellateFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomanh3_tessellate_fail_total",
		Help: "Features skipped in the hexagon source because cover failed",
	})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomanh3_geocode_requests_total",
		Help: "Forward geocoding queries by provider",
	}, []string{"provider"})
	GeocodeFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomanh3_geocode_fail_total",
		Help: "Forward geocoding queries degraded to empty by provider",
	}, []string{"provider"})
	GeocodeDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geomanh3_geocode_duration_ms",
		Help:    "Forward geocoding duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"provider"})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomanh3_geocode_cache_hits_total",
		Help: "Geocoding cache hits",
	})
	GeocodeCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomanh3_geocode_cache_misses_total",
		Help: "Geocoding cache misses",
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geomanh3_sessions_active",
		Help: "Open websocket map sessions",
	})
)

func init() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(BenignErrorsTotal)
	prometheus.MustRegister(TessellateDurationMs)
	prometheus.MustRegister(TessellateCells)
	prometheus.MustRegister(TessellateFailTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeFailTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeCacheMissesTotal)
	prometheus.MustRegister(SessionsActive)
}

// 文档注释：返回 Prometheus 指标监听器，在 API 前缀下挂载 /metrics
func Handler() http.Handler { return promhttp.Handler() }
