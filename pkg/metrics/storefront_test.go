package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorefrontMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefront(reg)

	m.IncCartSync(CartSyncRemote)
	m.IncCartSync(CartSyncFallback)
	m.IncCartSync(CartSyncFallback)
	m.IncCatalogRequest("search", errors.New("boom"))
	m.IncValidationFailure("shipping")
	m.IncOrderPlaced()
	m.IncOrderFailed()
	m.ObserveUpstream("cart_add", 120*time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_sync_total", "result", CartSyncFallback); err != nil {
		t.Fatalf("fetch cart sync: %v", err)
	} else if got != 2 {
		t.Fatalf("expected fallback=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "catalog_requests_total", "result", ResultFailure); err != nil {
		t.Fatalf("fetch catalog: %v", err)
	} else if got != 1 {
		t.Fatalf("expected catalog failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "checkout_validation_failures_total", "step", "shipping"); err != nil {
		t.Fatalf("fetch validation: %v", err)
	} else if got != 1 {
		t.Fatalf("expected validation failure=1, got %f", got)
	}

	if mf := findMetricFamily(mfs, "orders_placed_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected orders_placed_total=1")
	}

	if got, err := fetchHistogramSum(mfs, "shopapi_request_duration_seconds", "operation", "cart_add"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestStorefrontMetricsNilSafe(t *testing.T) {
	var m *Storefront
	m.IncCartSync(CartSyncRemote)
	m.IncOrderPlaced()

	unregistered := NewStorefront(nil)
	unregistered.IncValidationFailure("payment")
	unregistered.ObserveUpstream("", time.Second, nil)
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

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
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
