// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the common export labels (entity, format, status) onto
//     Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint, which suits one-shot CLI exports.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog, StatsD) without changes to the
// export engine.
package prompush

import (
	"fmt"

	"github.com/neilcrookes/export/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Run-level metrics
	runCounter  *prometheus.CounterVec // "export_runs_total"
	runDuration *prometheus.SummaryVec // "export_run_duration_seconds"

	// Stream-level metrics
	pageCounter *prometheus.CounterVec // "export_pages_total"
	rowCounter  *prometheus.CounterVec // "export_rows_total"
	byteCounter *prometheus.CounterVec // "export_bytes_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the exporting binary).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "export"
	}

	reg := prometheus.NewRegistry()

	runCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_runs_total",
			Help: "Total number of export runs, partitioned by entity, format, and status.",
		},
		[]string{"entity", "format", "status"},
	)
	runDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "export_run_duration_seconds",
			Help:       "Duration of export runs in seconds, partitioned by entity, format, and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"entity", "format", "status"},
	)

	pageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_pages_total",
			Help: "Total number of page fetches, partitioned by entity and format.",
		},
		[]string{"entity", "format"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_rows_total",
			Help: "Total number of rows rendered, partitioned by entity and format.",
		},
		[]string{"entity", "format"},
	)
	byteCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_bytes_total",
			Help: "Total number of bytes streamed, partitioned by entity and format.",
		},
		[]string{"entity", "format"},
	)

	if err := reg.Register(runCounter); err != nil {
		return nil, fmt.Errorf("prompush: register run counter: %w", err)
	}
	if err := reg.Register(runDuration); err != nil {
		return nil, fmt.Errorf("prompush: register run summary: %w", err)
	}
	if err := reg.Register(pageCounter); err != nil {
		return nil, fmt.Errorf("prompush: register page counter: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(byteCounter); err != nil {
		return nil, fmt.Errorf("prompush: register byte counter: %w", err)
	}

	return &Backend{
		gatewayURL:  gatewayURL,
		jobName:     jobName,
		reg:         reg,
		runCounter:  runCounter,
		runDuration: runDuration,
		pageCounter: pageCounter,
		rowCounter:  rowCounter,
		byteCounter: byteCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	entity := labels["entity"]
	format := labels["format"]

	switch name {
	case "export_runs_total":
		if b.runCounter == nil {
			return
		}
		b.runCounter.WithLabelValues(entity, format, labels["status"]).Add(delta)

	case "export_pages_total":
		if b.pageCounter == nil {
			return
		}
		b.pageCounter.WithLabelValues(entity, format).Add(delta)

	case "export_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(entity, format).Add(delta)

	case "export_bytes_total":
		if b.byteCounter == nil {
			return
		}
		b.byteCounter.WithLabelValues(entity, format).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "export_run_duration_seconds" || b.runDuration == nil {
		return
	}
	b.runDuration.WithLabelValues(labels["entity"], labels["format"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
