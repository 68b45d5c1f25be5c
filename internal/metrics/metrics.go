// Package metrics records submission outcomes for Prometheus and for the
// JSON summary endpoint.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/plantdoc/internal/diagnosis"
)

// Outcome labels how a submission ended.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeTransferError     Outcome = "transfer_error"
	OutcomeMalformedResponse Outcome = "malformed_response"
	OutcomeError             Outcome = "error"
)

// Summary represents aggregated submission insights since process start.
type Summary struct {
	TotalRequests              int64   `json:"total_requests"`
	SuccessfulRequests         int64   `json:"successful_requests"`
	SuccessRate                float64 `json:"success_rate"`
	AverageConfidence          float64 `json:"average_confidence"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
}

// Metrics owns a dedicated Prometheus registry plus in-process totals.
type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	latency     prometheus.Histogram
	severities  *prometheus.CounterVec

	mu            sync.Mutex
	total         int64
	successful    int64
	confidenceSum float64
	latencySumMs  float64
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plantdoc_submissions_total",
			Help: "Image submissions to the classification service by outcome.",
		}, []string{"outcome"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "plantdoc_classification_duration_ms",
			Help:    "Round trip time of classification requests in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		severities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plantdoc_diagnoses_total",
			Help: "Successful diagnoses by severity category.",
		}, []string{"category"}),
	}
}

// ObserveSubmission records one submission. result is nil unless the outcome is a success.
func (m *Metrics) ObserveSubmission(outcome Outcome, latency time.Duration, result *diagnosis.Result) {
	ms := float64(latency) / float64(time.Millisecond)
	m.submissions.WithLabelValues(string(outcome)).Inc()
	m.latency.Observe(ms)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.latencySumMs += ms
	if outcome == OutcomeSuccess && result != nil {
		m.successful++
		m.confidenceSum += result.Confidence
		m.severities.WithLabelValues(string(diagnosis.ClassifySeverity(result.Severity))).Inc()
	}
}

// Summary aggregates the totals recorded so far.
func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := Summary{
		TotalRequests:      m.total,
		SuccessfulRequests: m.successful,
	}
	if m.total > 0 {
		summary.SuccessRate = float64(m.successful) / float64(m.total)
		summary.AverageProcessingLatencyMs = m.latencySumMs / float64(m.total)
	}
	if m.successful > 0 {
		summary.AverageConfidence = m.confidenceSum / float64(m.successful)
	}
	return summary
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
