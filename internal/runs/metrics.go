package runs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the run-level Prometheus collectors.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	recordsRead    *prometheus.CounterVec
	linesWritten   *prometheus.CounterVec
	runsInProgress prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered, which suits tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinmr_runs_total",
				Help: "Finished job runs by job and final status",
			},
			[]string{"job", "status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinmr_run_duration_seconds",
				Help:    "Wall time of job runs",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
			},
			[]string{"job"},
		),
		recordsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinmr_records_read_total",
				Help: "Dataset records fed to map functions",
			},
			[]string{"job"},
		),
		linesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinmr_output_lines_total",
				Help: "Output lines written by completed runs",
			},
			[]string{"job"},
		),
		runsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinmr_runs_in_progress",
				Help: "Runs currently executing",
			},
		),
	}
}

func (m *Metrics) started() {
	m.runsInProgress.Inc()
}

func (m *Metrics) finished(run *Run) {
	m.runsInProgress.Dec()
	m.runsTotal.WithLabelValues(run.Job, string(run.Status)).Inc()
	m.runDuration.WithLabelValues(run.Job).Observe(run.Duration().Seconds())
	m.recordsRead.WithLabelValues(run.Job).Add(float64(run.Stats.RecordsRead))
	m.linesWritten.WithLabelValues(run.Job).Add(float64(run.Stats.LinesWritten))
}

// rejected counts a run that failed before it could start.
func (m *Metrics) rejected(run *Run) {
	m.runsTotal.WithLabelValues(run.Job, string(run.Status)).Inc()
}
