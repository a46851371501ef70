package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "outbreak_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline run.
type Metrics struct {
	RecordsRead    *prometheus.CounterVec // labels: source={country,state,county,live}
	RecordsDropped *prometheus.CounterVec // labels: source, reason={unresolved,out_of_range}
	LiveFallbacks  *prometheus.CounterVec // labels: from, to, kind={network,shape,empty}

	StageDuration *prometheus.HistogramVec // labels: stage
	Locations     *prometheus.GaugeVec     // labels: tier
	Documents     *prometheus.CounterVec   // labels: sink={file,kafka}

	RunSuccess       prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Source records parsed, by source.",
		}, []string{"source"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Source records skipped with a warning, by source and reason.",
		}, []string{"source", "reason"}),
		LiveFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_fallbacks_total",
			Help:      "Switches from the primary to the secondary live provider.",
		}, []string{"from", "to", "kind"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		Locations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations",
			Help:      "Locations exported in the chart document of each tier.",
		}, []string{"tier"}),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_written_total",
			Help:      "Documents delivered, by sink.",
		}, []string{"sink"}),
		RunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 when the last run completed, 0 when it failed.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished.",
		}),
	}
}

// Collectors lists every metric, for registering with a custom registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsRead,
		m.RecordsDropped,
		m.LiveFallbacks,
		m.StageDuration,
		m.Locations,
		m.Documents,
		m.RunSuccess,
		m.LastRunTimestamp,
	}
}
