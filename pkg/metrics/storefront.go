package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cart sync outcomes.
const (
	CartSyncRemote   = "remote"
	CartSyncFallback = "fallback"
	CartSyncDisabled = "disabled"
)

// Request outcomes.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Storefront records the storefront's operational counters.
type Storefront struct {
	upstreamDuration   *prometheus.HistogramVec
	catalogRequests    *prometheus.CounterVec
	cartSync           *prometheus.CounterVec
	ordersPlaced       prometheus.Counter
	ordersFailed       prometheus.Counter
	validationFailures *prometheus.CounterVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopapi_request_duration_seconds",
		Help:    "Duration of remote shop API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	catalogRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Catalog lookups by operation and result.",
	}, []string{"operation", "result"})
	cartSync := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_total",
		Help: "Cart mutations by remote sync outcome.",
	}, []string{"result"})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders confirmed and persisted.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Order placements that did not complete.",
	})
	validationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_validation_failures_total",
		Help: "Checkout step submissions rejected by validation.",
	}, []string{"step"})
	reg.MustRegister(upstreamDuration, catalogRequests, cartSync, ordersPlaced, ordersFailed, validationFailures)
	return &Storefront{
		upstreamDuration:   upstreamDuration,
		catalogRequests:    catalogRequests,
		cartSync:           cartSync,
		ordersPlaced:       ordersPlaced,
		ordersFailed:       ordersFailed,
		validationFailures: validationFailures,
	}
}

// ObserveUpstream records the duration of one remote API call.
func (m *Storefront) ObserveUpstream(operation string, duration time.Duration, err error) {
	if m == nil || m.upstreamDuration == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(normalizeLabel(operation), resultLabel(err)).Observe(duration.Seconds())
}

// IncCatalogRequest counts a catalog lookup.
func (m *Storefront) IncCatalogRequest(operation string, err error) {
	if m == nil || m.catalogRequests == nil {
		return
	}
	m.catalogRequests.WithLabelValues(normalizeLabel(operation), resultLabel(err)).Inc()
}

// IncCartSync counts a cart mutation by how its totals were obtained.
func (m *Storefront) IncCartSync(result string) {
	if m == nil || m.cartSync == nil {
		return
	}
	m.cartSync.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOrderPlaced counts a confirmed order.
func (m *Storefront) IncOrderPlaced() {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// IncOrderFailed counts a failed placement.
func (m *Storefront) IncOrderFailed() {
	if m == nil || m.ordersFailed == nil {
		return
	}
	m.ordersFailed.Inc()
}

// IncValidationFailure counts a rejected checkout step.
func (m *Storefront) IncValidationFailure(step string) {
	if m == nil || m.validationFailures == nil {
		return
	}
	m.validationFailures.WithLabelValues(normalizeLabel(step)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
