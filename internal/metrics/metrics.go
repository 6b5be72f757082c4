package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of a roster load.
const (
	LoadIssued    = "issued"
	LoadApplied   = "applied"
	LoadDiscarded = "discarded"
	LoadFailed    = "failed"
)

// Metrics holds the roster console's Prometheus collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	loads     *prometheus.CounterVec
	mutations *prometheus.CounterVec
	inflight  prometheus.Gauge
}

// New creates the collectors. Process and Go runtime collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "loads_total",
			Help:      "Roster list loads by outcome.",
		}, []string{"outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "mutations_total",
			Help:      "Create, update and delete requests by result.",
		}, []string{"operation", "result"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roster",
			Name:      "loads_in_flight",
			Help:      "List requests issued but not yet answered.",
		}),
	}
	m.registry.MustRegister(
		m.loads,
		m.mutations,
		m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) LoadIssued() {
	m.loads.WithLabelValues(LoadIssued).Inc()
	m.inflight.Inc()
}

func (m *Metrics) LoadApplied() {
	m.loads.WithLabelValues(LoadApplied).Inc()
	m.inflight.Dec()
}

func (m *Metrics) LoadDiscarded() {
	m.loads.WithLabelValues(LoadDiscarded).Inc()
	m.inflight.Dec()
}

func (m *Metrics) LoadFailed() {
	m.loads.WithLabelValues(LoadFailed).Inc()
	m.inflight.Dec()
}

// MutationDone counts a create, update or delete by whether it returned an error.
func (m *Metrics) MutationDone(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mutations.WithLabelValues(operation, result).Inc()
}
