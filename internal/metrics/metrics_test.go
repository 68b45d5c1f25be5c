package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/plantdoc/internal/diagnosis"
)

func TestSummaryAggregatesOutcomes(t *testing.T) {
	m := New()
	m.ObserveSubmission(OutcomeSuccess, 100*time.Millisecond, &diagnosis.Result{Severity: "High", Confidence: 90})
	m.ObserveSubmission(OutcomeSuccess, 300*time.Millisecond, &diagnosis.Result{Severity: "Low", Confidence: 70})
	m.ObserveSubmission(OutcomeTransferError, 200*time.Millisecond, nil)

	summary := m.Summary()
	if summary.TotalRequests != 3 || summary.SuccessfulRequests != 2 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.AverageConfidence != 80 {
		t.Fatalf("expected average confidence 80, got %v", summary.AverageConfidence)
	}
	if summary.AverageProcessingLatencyMs != 200 {
		t.Fatalf("expected average latency 200ms, got %v", summary.AverageProcessingLatencyMs)
	}
	if got := summary.SuccessRate; got < 0.66 || got > 0.67 {
		t.Fatalf("unexpected success rate %v", got)
	}

	if got := testutil.ToFloat64(m.submissions.WithLabelValues(string(OutcomeTransferError))); got != 1 {
		t.Fatalf("expected 1 transfer error, got %v", got)
	}
	if got := testutil.ToFloat64(m.severities.WithLabelValues(string(diagnosis.SeverityHigh))); got != 1 {
		t.Fatalf("expected 1 high severity diagnosis, got %v", got)
	}
}

func TestSummaryEmpty(t *testing.T) {
	if summary := New().Summary(); summary != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveSubmission(OutcomeSuccess, time.Millisecond, &diagnosis.Result{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `plantdoc_submissions_total{outcome="success"} 1`) {
		t.Fatalf("metrics output missing submission counter:\n%s", body)
	}
}
