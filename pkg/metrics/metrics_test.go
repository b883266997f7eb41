package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPublisherMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPublisherMetrics(reg)
	m.ObserveBatch(250 * time.Millisecond)
	m.IncEvent("offer_created", "published")
	m.IncEvent("offer_created", "published")
	m.IncEvent("", "retry")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "outbox_events_total", "event_type", "offer_created"); err != nil {
		t.Fatalf("fetch events: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 published events, got %f", got)
	}
	if _, err := fetchCounterValue(mfs, "outbox_events_total", "event_type", "unknown"); err != nil {
		t.Fatalf("expected empty label normalized: %v", err)
	}

	mf := findMetricFamily(mfs, "outbox_batch_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleSum() <= 0 {
		t.Fatalf("expected batch duration sum > 0")
	}
}

func TestDomainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomainMetrics(reg)
	m.TxnApplied("purchase")
	m.TxnRejected("sale", "insufficient_stock")
	m.Offer("created", nil)
	m.Offer("sent", errors.New("smtp down"))
	m.CodeRetry("product")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "stock_txns_applied_total", "type", "purchase"); got != 1 {
		t.Fatalf("expected purchase=1, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "stock_txns_rejected_total", "reason", "insufficient_stock"); got != 1 {
		t.Fatalf("expected rejection=1, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "offers_total", "result", "error"); got != 1 {
		t.Fatalf("expected one failed offer op, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "code_generation_retries_total", "scope", "product"); got != 1 {
		t.Fatalf("expected one retry, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var d *DomainMetrics
	d.TxnApplied("sale")
	d.Offer("created", nil)
	NewDomainMetrics(nil).CodeRetry("category")
	var h *HTTPMetrics
	h.Observe(http.MethodGet, "/x", 200, time.Millisecond)
	var p *PublisherMetrics
	p.IncEvent("x", "y")
}

func TestHTTPMetricsAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe(http.MethodPost, "/api/v1/offers", http.StatusCreated, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `http_requests_total{method="POST",route="/api/v1/offers",status="201"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", body)
	}
}

func TestCronJobMetricsSplitsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", time.Second, nil)
	m.ObserveRun("usage-alerts", time.Second, errors.New("db down"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "result", "failure"); err != nil || got != 1 {
		t.Fatalf("expected one failure, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "job", "outbox-retention"); err != nil || got != 1 {
		t.Fatalf("expected one retention run, got %f (%v)", got, err)
	}

	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("noop", time.Second, nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
