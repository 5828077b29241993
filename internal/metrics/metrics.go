// Package metrics exposes Prometheus collectors for tree builds, catalog
// loads and HTTP requests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phobologic/quid/internal/graph"
)

const namespace = "quid"

// Metrics holds every collector. Create one per registry with New.
type Metrics struct {
	buildsTotal     prometheus.Counter
	buildDuration   prometheus.Histogram
	treeNodes       prometheus.Histogram
	truncations     *prometheus.CounterVec
	loadsTotal      *prometheus.CounterVec
	loadDuration    prometheus.Histogram
	catalogRecords  *prometheus.GaugeVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		buildsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "builds_total",
			Help:      "Dependency trees built.",
		}),
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "build_duration_seconds",
			Help:      "Time to build one dependency tree.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		treeNodes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "tree_nodes",
			Help:      "Nodes per built tree.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		truncations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "truncations_total",
			Help:      "Nodes returned as leaves without expansion.",
		}, []string{"reason"}),
		loadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "loads_total",
			Help:      "Catalog loads by environment and outcome.",
		}, []string{"environment", "status"}),
		loadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "load_duration_seconds",
			Help:      "Time to fetch, decode and index both catalogs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		catalogRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "records",
			Help:      "Records in the most recently loaded catalog.",
		}, []string{"environment", "catalog"}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveBuild implements graph.Observer.
func (m *Metrics) ObserveBuild(_ string, stats graph.Stats, elapsed time.Duration) {
	m.buildsTotal.Inc()
	m.buildDuration.Observe(elapsed.Seconds())
	m.treeNodes.Observe(float64(stats.Nodes))
	for reason, n := range stats.Truncated {
		m.truncations.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// ObserveLoad implements dataset.Observer.
func (m *Metrics) ObserveLoad(env string, calls, files int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.loadsTotal.WithLabelValues(env, status).Inc()
	m.loadDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.catalogRecords.WithLabelValues(env, "DOCSP").Set(float64(calls))
		m.catalogRecords.WithLabelValues(env, "DOCFIC").Set(float64(files))
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
