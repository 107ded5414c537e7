// Package metrics defines the Prometheus collectors of the scoring pipeline
// and exposes an HTTP handler for scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PapersScored         *prometheus.CounterVec
	PapersSkipped        *prometheus.CounterVec
	SamplesGenerated     *prometheus.CounterVec
	CoordinatesProcessed *prometheus.CounterVec
	CheckpointWrites     *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PapersScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "novelty_papers_scored_total",
				Help: "Papers that received a score, by indicator.",
			},
			[]string{"indicator"},
		),
		PapersSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "novelty_papers_skipped_total",
				Help: "Papers skipped by indicator and reason (insufficient_items, error).",
			},
			[]string{"indicator", "reason"},
		),
		SamplesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "novelty_null_samples_generated_total",
				Help: "Null-model samples generated, by indicator.",
			},
			[]string{"indicator"},
		),
		CoordinatesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "novelty_null_coordinates_processed_total",
				Help: "Coordinates whose null statistics were accumulated.",
			},
			[]string{"indicator"},
		),
		CheckpointWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "novelty_checkpoint_writes_total",
				Help: "Null-statistics checkpoint writes by status.",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "novelty_stage_duration_seconds",
				Help:    "Duration of pipeline stages per focal year.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600, 14400},
			},
			[]string{"indicator", "stage"},
		),
	}

	reg.MustRegister(
		m.PapersScored,
		m.PapersSkipped,
		m.SamplesGenerated,
		m.CoordinatesProcessed,
		m.CheckpointWrites,
		m.StageDuration,
	)

	return m
}

func (m *Metrics) Scored(indicator string) {
	if m == nil {
		return
	}
	m.PapersScored.WithLabelValues(indicator).Inc()
}

func (m *Metrics) Skipped(indicator, reason string) {
	if m == nil {
		return
	}
	m.PapersSkipped.WithLabelValues(indicator, reason).Inc()
}

func (m *Metrics) Sampled(indicator string) {
	if m == nil {
		return
	}
	m.SamplesGenerated.WithLabelValues(indicator).Inc()
}

func (m *Metrics) Coordinates(indicator string, n int) {
	if m == nil {
		return
	}
	m.CoordinatesProcessed.WithLabelValues(indicator).Add(float64(n))
}

func (m *Metrics) Checkpoint(status string) {
	if m == nil {
		return
	}
	m.CheckpointWrites.WithLabelValues(status).Inc()
}

// Stage returns a func that records the elapsed time of a stage when called.
func (m *Metrics) Stage(indicator, stage string) func() {
	start := time.Now()
	return func() {
		if m == nil {
			return
		}
		m.StageDuration.WithLabelValues(indicator, stage).Observe(time.Since(start).Seconds())
	}
}
