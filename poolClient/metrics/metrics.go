// Package metrics exposes the Prometheus collectors of the pool client.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// PoolMetrics wraps collectors tracking reconciliation and submission health.
type PoolMetrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	eventsMerged  *prometheus.CounterVec
	reorgs        *prometheus.CounterVec
	viewSize      *prometheus.GaugeVec
	slotErrors    *prometheus.CounterVec
	commands      *prometheus.CounterVec
	headHeight    prometheus.Gauge
}

// Pool returns the lazily initialised metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ppool",
				Subsystem: "poller",
				Name:      "cycles_total",
				Help:      "Poll cycles segmented by outcome.",
			}, []string{"outcome"}),
			cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "ppool",
				Subsystem: "poller",
				Name:      "cycle_duration_seconds",
				Help:      "Latency distribution of completed poll cycles.",
				Buckets:   prometheus.DefBuckets,
			}),
			eventsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ppool",
				Subsystem: "reconciler",
				Name:      "events_merged_total",
				Help:      "New events merged into the view per event type.",
			}, []string{"event_type"}),
			reorgs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ppool",
				Subsystem: "reconciler",
				Name:      "reorgs_detected_total",
				Help:      "Reorganizations detected per event type.",
			}, []string{"event_type"}),
			viewSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ppool",
				Subsystem: "reconciler",
				Name:      "view_size",
				Help:      "Number of events held in the view per event type.",
			}, []string{"event_type"}),
			slotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ppool",
				Subsystem: "reader",
				Name:      "slot_read_errors_total",
				Help:      "Failed slot reads per slot.",
			}, []string{"slot"}),
			commands: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ppool",
				Subsystem: "submitter",
				Name:      "commands_total",
				Help:      "Commands segmented by target slot and outcome.",
			}, []string{"target_slot", "outcome"}),
			headHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ppool",
				Subsystem: "poller",
				Name:      "head_height",
				Help:      "Latest ledger head height observed.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.cycles,
			poolRegistry.cycleDuration,
			poolRegistry.eventsMerged,
			poolRegistry.reorgs,
			poolRegistry.viewSize,
			poolRegistry.slotErrors,
			poolRegistry.commands,
			poolRegistry.headHeight,
		)
	})
	return poolRegistry
}

// ObserveCycle records a finished poll cycle.
func (m *PoolMetrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// RecordMerge records how many new events a merge added and the view size after it.
func (m *PoolMetrics) RecordMerge(eventType string, added, size int) {
	if m == nil {
		return
	}
	if added > 0 {
		m.eventsMerged.WithLabelValues(eventType).Add(float64(added))
	}
	m.viewSize.WithLabelValues(eventType).Set(float64(size))
}

// RecordReorg counts a detected reorganization.
func (m *PoolMetrics) RecordReorg(eventType string) {
	if m == nil {
		return
	}
	m.reorgs.WithLabelValues(eventType).Inc()
}

// RecordSlotError counts a failed slot read.
func (m *PoolMetrics) RecordSlotError(slot string) {
	if m == nil {
		return
	}
	m.slotErrors.WithLabelValues(slot).Inc()
}

// RecordCommand counts a command outcome.
func (m *PoolMetrics) RecordCommand(targetSlot, outcome string) {
	if m == nil {
		return
	}
	if targetSlot == "" {
		targetSlot = "unknown"
	}
	m.commands.WithLabelValues(targetSlot, outcome).Inc()
}

// SetHead records the latest head height.
func (m *PoolMetrics) SetHead(height uint64) {
	if m == nil {
		return
	}
	m.headHeight.Set(float64(height))
}
