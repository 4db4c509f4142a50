// Package metrics exposes prometheus metrics for document intake.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rental-application-engine/internal/models"
)

// IntakeMetrics records upload, extraction and submission outcomes.
type IntakeMetrics struct {
	registry *prometheus.Registry

	uploadsTotal       *prometheus.CounterVec
	extractionTotal    *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	submissionsTotal   *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

// NewIntakeMetrics creates metrics on a private registry.
func NewIntakeMetrics() *IntakeMetrics {
	registry := prometheus.NewRegistry()

	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental",
			Subsystem: "intake",
			Name:      "uploads_total",
			Help:      "Uploaded files by step and outcome.",
		},
		[]string{"step", "outcome"},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental",
			Subsystem: "intake",
			Name:      "extractions_total",
			Help:      "Document extractions by step and status.",
		},
		[]string{"step", "status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental",
			Subsystem: "intake",
			Name:      "extraction_duration_seconds",
			Help:      "Document extraction duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"step"},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Application submissions by result.",
		},
		[]string{"result"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rental",
			Subsystem: "intake",
			Name:      "active_sessions",
			Help:      "Wizard sessions held in memory.",
		},
	)

	registry.MustRegister(uploadsTotal, extractionTotal, extractionDuration, submissionsTotal, activeSessions)

	return &IntakeMetrics{
		registry:           registry,
		uploadsTotal:       uploadsTotal,
		extractionTotal:    extractionTotal,
		extractionDuration: extractionDuration,
		submissionsTotal:   submissionsTotal,
		activeSessions:     activeSessions,
	}
}

// Handler serves the registry in the prometheus text format.
func (m *IntakeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IntakeMetrics) ObserveUpload(step models.DocumentType, outcome string) {
	m.uploadsTotal.WithLabelValues(string(step), outcome).Inc()
}

func (m *IntakeMetrics) ObserveExtraction(step models.DocumentType, status models.AnalysisStatus, elapsed time.Duration) {
	m.extractionTotal.WithLabelValues(string(step), string(status)).Inc()
	m.extractionDuration.WithLabelValues(string(step)).Observe(elapsed.Seconds())
}

// ObserveSubmission counts a submission attempt; result is "success" or a failure stage.
func (m *IntakeMetrics) ObserveSubmission(result string) {
	m.submissionsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the number of in-memory sessions.
func (m *IntakeMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
