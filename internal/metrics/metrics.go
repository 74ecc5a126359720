// Package metrics holds the prometheus collectors of the catalog service.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catalog"

// Metrics groups every collector the service records into. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	PageRequests          *prometheus.CounterVec
	QueryDuration         *prometheus.HistogramVec
	ViewIncrementFailures prometheus.Counter
	HierarchyCache        *prometheus.CounterVec
	EventsPublished       *prometheus.CounterVec
	EventsConsumed        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_requests_total",
			Help:      "Catalog page requests by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of catalog store queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		ViewIncrementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_increment_failures_total",
			Help:      "Best-effort view counter updates that failed.",
		}),
		HierarchyCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hierarchy_cache_lookups_total",
			Help:      "Category hierarchy cache lookups by result.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published by type and outcome.",
		}, []string{"event_type", "outcome"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Domain events consumed by routing key and outcome.",
		}, []string{"routing_key", "outcome"}),
	}

	reg.MustRegister(
		m.PageRequests,
		m.QueryDuration,
		m.ViewIncrementFailures,
		m.HierarchyCache,
		m.EventsPublished,
		m.EventsConsumed,
	)
	return m
}

// PageRequest counts one page request with the given outcome
func (m *Metrics) PageRequest(outcome string) {
	if m == nil {
		return
	}
	m.PageRequests.WithLabelValues(outcome).Inc()
}

// ObserveQuery records the duration of a named store query
func (m *Metrics) ObserveQuery(query string, started time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(query).Observe(time.Since(started).Seconds())
}

// ViewIncrementFailed counts a lost view counter update
func (m *Metrics) ViewIncrementFailed() {
	if m == nil {
		return
	}
	m.ViewIncrementFailures.Inc()
}

// CacheLookup counts a hierarchy cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.HierarchyCache.WithLabelValues(result).Inc()
}

// EventPublished counts a publish attempt that finished with outcome
func (m *Metrics) EventPublished(eventType, outcome string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// EventConsumed counts a consumed delivery that finished with outcome
func (m *Metrics) EventConsumed(routingKey, outcome string) {
	if m == nil {
		return
	}
	m.EventsConsumed.WithLabelValues(routingKey, outcome).Inc()
}

// StatsSource reports catalog size
type StatsSource interface {
	GetStats(ctx context.Context) (total, active int64, err error)
}

// RegisterCatalogGauges exposes product counts, read from the store on scrape
func RegisterCatalogGauges(reg prometheus.Registerer, src StatsSource) {
	read := func(active bool) float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		total, act, err := src.GetStats(ctx)
		if err != nil {
			return 0
		}
		if active {
			return float64(act)
		}
		return float64(total)
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "products",
			Help:      "Number of products in the catalog.",
		}, func() float64 { return read(false) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_products",
			Help:      "Number of products in the active state.",
		}, func() float64 { return read(true) }),
	)
}
