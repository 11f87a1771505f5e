package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Hook registry metrics
	HooksCreatedTotal *prometheus.CounterVec
	HooksRemovedTotal *prometheus.CounterVec
	HookConflictsTotal prometheus.Counter

	// Delivery metrics
	DeliveriesTotal       *prometheus.CounterVec
	DeliveryDuration      *prometheus.HistogramVec
	FanoutSize            prometheus.Histogram

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Business metrics
	HooksTotal prometheus.Gauge
	GemsTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemyard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemyard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HooksCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemyard_hooks_created_total",
				Help: "Total number of webhooks registered",
			},
			[]string{"scope"},
		),
		HooksRemovedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemyard_hooks_removed_total",
				Help: "Total number of webhooks removed",
			},
			[]string{"scope"},
		),
		HookConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gemyard_hook_conflicts_total",
				Help: "Total number of duplicate webhook registrations rejected",
			},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemyard_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"trigger", "outcome"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemyard_delivery_duration_seconds",
				Help:    "Webhook delivery duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		FanoutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gemyard_fanout_size",
				Help:    "Number of hooks matched per publish event",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gemyard_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gemyard_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemyard_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache", "kind"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemyard_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache", "kind"},
		),
		HooksTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gemyard_hooks_total",
				Help: "Current number of registered webhooks",
			},
		),
		GemsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gemyard_gems_total",
				Help: "Current number of hosted gems",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HooksCreatedTotal,
		m.HooksRemovedTotal,
		m.HookConflictsTotal,
		m.DeliveriesTotal,
		m.DeliveryDuration,
		m.FanoutSize,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HooksTotal,
		m.GemsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the given registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveRequest records HTTP request metrics
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateDBStats refreshes database pool gauges from sql.DBStats
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}
