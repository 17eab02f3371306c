// Package metrics exposes Prometheus instrumentation for the backtest
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all instruments on a private registry so parallel test
// processes never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal     *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	BacktestsTotal   *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	BarsSimulated    prometheus.Counter
}

// New creates and registers the instrument set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hindcast_fetches_total",
			Help: "Historical data fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "hindcast_cache_hits_total",
			Help: "Series cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "hindcast_cache_misses_total",
			Help: "Series cache misses, including stale entries.",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "hindcast_cache_evictions_total",
			Help: "Series cache entries evicted by the memory store.",
		}),
		BacktestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hindcast_backtests_total",
			Help: "Backtest runs by outcome.",
		}, []string{"outcome"}),
		BacktestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hindcast_backtest_duration_seconds",
			Help:    "End-to-end backtest run duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		BarsSimulated: factory.NewCounter(prometheus.CounterOpts{
			Name: "hindcast_bars_simulated_total",
			Help: "Price bars processed by the trading simulator.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
