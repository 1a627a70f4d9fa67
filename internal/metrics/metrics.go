package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gemstone-testapp/internal/simulate"
)

const namespace = "gemstone_testapp"

// Metrics holds the harness collectors on a private registry so tests can
// build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	statusRequests prometheus.Counter
	statusDuration prometheus.Histogram
	loadIterations prometheus.Counter
	retainedChunks prometheus.Gauge
	retainedBytes  prometheus.Gauge
	heartbeats     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "daemon_fetches_total",
				Help:      "Daemon API fetches by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "daemon_fetch_duration_seconds",
				Help:      "Daemon API fetch latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		statusRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_requests_total",
			Help:      "Status pages served",
		}),
		statusDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_request_duration_seconds",
			Help:      "Time to build and write one status page",
			Buckets:   prometheus.DefBuckets,
		}),
		loadIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_iterations_total",
			Help:      "Completed load simulator iterations",
		}),
		retainedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_retained_chunks",
			Help:      "Chunks currently held by the load simulator",
		}),
		retainedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_retained_bytes",
			Help:      "Bytes currently held by the load simulator",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Main loop iterations",
		}),
	}

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.statusRequests,
		m.statusDuration,
		m.loadIterations,
		m.retainedChunks,
		m.retainedBytes,
		m.heartbeats,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveFetch(endpoint, outcome string, took time.Duration) {
	m.fetches.WithLabelValues(endpoint, outcome).Inc()
	m.fetchDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) ObserveStatusRequest(took time.Duration) {
	m.statusRequests.Inc()
	m.statusDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveLoadIteration(stats simulate.LoadStats) {
	m.loadIterations.Inc()
	m.retainedChunks.Set(float64(stats.RetainedChunks))
	m.retainedBytes.Set(float64(stats.RetainedBytes))
}

func (m *Metrics) ObserveHeartbeat() {
	m.heartbeats.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
