// Package metrics holds the Prometheus counters and gauges of a run and writes them to a
// node-exporter textfile.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/desertthunder/spotx/internal/tasks"
)

// Metrics holds Prometheus counters and gauges for the delivery pipeline.
type Metrics struct {
	registry       *prometheus.Registry
	itemsTotal     *prometheus.CounterVec
	bytesDelivered prometheus.Counter
	runDuration    prometheus.Gauge
	queueSize      prometheus.Gauge
}

// New creates and registers the pipeline metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	itemsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spotx_items_total",
		Help: "Total number of processed items by outcome",
	}, []string{"outcome"})
	bytesDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotx_bytes_delivered_total",
		Help: "Total payload bytes handed to the delivery sink",
	})
	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotx_run_duration_seconds",
		Help: "Wall time of the last run",
	})
	queueSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotx_queue_size",
		Help: "Number of items queued in the last run",
	})

	registry.MustRegister(itemsTotal, bytesDelivered, runDuration, queueSize)

	return &Metrics{
		registry:       registry,
		itemsTotal:     itemsTotal,
		bytesDelivered: bytesDelivered,
		runDuration:    runDuration,
		queueSize:      queueSize,
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetQueueSize sets the queue size gauge.
func (m *Metrics) SetQueueSize(n int) {
	m.queueSize.Set(float64(n))
}

// Record counts one item outcome. It implements tasks.Recorder.
func (m *Metrics) Record(_ context.Context, o tasks.ItemOutcome) error {
	m.itemsTotal.WithLabelValues(string(o.Status)).Inc()
	if o.Bytes > 0 {
		m.bytesDelivered.Add(float64(o.Bytes))
	}
	return nil
}

// ObserveRun sets the run-level gauges from a finished result.
func (m *Metrics) ObserveRun(result *tasks.RunResult) {
	m.queueSize.Set(float64(result.Queued))
	m.runDuration.Set(result.Duration().Seconds())
}

// WriteTextfile writes the registry in the text exposition format to path, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
