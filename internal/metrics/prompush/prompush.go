// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to
// Prometheus by using client_golang CounterVec/SummaryVec collectors
// and pushing them to a Pushgateway instance instead of exposing an
// HTTP scrape endpoint — appropriate for a short-lived CLI run that
// exits before anything could scrape it.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"csvdiff/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	phaseCounter     *prometheus.CounterVec
	phaseDuration    *prometheus.SummaryVec
	rowCounter       *prometheus.CounterVec
	partitionCounter prometheus.Counter
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName
// labels the Pushgateway "job" grouping key; gatewayURL is its base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "csvdiff"
	}

	reg := prometheus.NewRegistry()

	phaseCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvdiff_phase_total",
			Help: "Total number of engine phase completions, partitioned by phase and status.",
		},
		[]string{"phase", "status"},
	)
	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "csvdiff_phase_duration_seconds",
			Help:       "Duration of engine phases in seconds, partitioned by phase and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"phase", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvdiff_rows_total",
			Help: "Row-level outcome counts per kind (added, removed, changed, unchanged).",
		},
		[]string{"kind"},
	)
	partitionCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "csvdiff_partitions_total",
			Help: "Total number of Pass-2 partitions processed.",
		},
	)

	if err := reg.Register(phaseCounter); err != nil {
		return nil, fmt.Errorf("prompush: register phase counter: %w", err)
	}
	if err := reg.Register(phaseDuration); err != nil {
		return nil, fmt.Errorf("prompush: register phase summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(partitionCounter); err != nil {
		return nil, fmt.Errorf("prompush: register partition counter: %w", err)
	}

	return &Backend{
		gatewayURL:       gatewayURL,
		jobName:          jobName,
		reg:              reg,
		phaseCounter:     phaseCounter,
		phaseDuration:    phaseDuration,
		rowCounter:       rowCounter,
		partitionCounter: partitionCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "csvdiff_phase_total":
		b.phaseCounter.WithLabelValues(labels["phase"], labels["status"]).Add(delta)
	case "csvdiff_rows_total":
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "csvdiff_partitions_total":
		b.partitionCounter.Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "csvdiff_phase_duration_seconds" {
		return
	}
	b.phaseDuration.WithLabelValues(labels["phase"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}
