package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/tableside"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Order metrics
	OrdersCreatedTotal      metric.Int64Counter
	OrderTransitionsTotal   metric.Int64Counter
	OrderConflictsTotal     metric.Int64Counter
	OrderNumberRetriesTotal metric.Int64Counter

	// Menu cache metrics
	CacheHitsTotal             metric.Int64Counter
	CacheMissesTotal           metric.Int64Counter
	CacheFallbacksTotal        metric.Int64Counter
	CachePopulateErrorsTotal   metric.Int64Counter
	CacheInvalidateErrorsTotal metric.Int64Counter

	// Realtime metrics
	EventsPublishedTotal metric.Int64Counter
	EventsDroppedTotal   metric.Int64Counter
	ActiveConnections    metric.Int64UpDownCounter
	RelayErrorsTotal     metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Order metrics
	m.OrdersCreatedTotal, _ = meter.Int64Counter(
		"tableside.orders.created.total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)

	m.OrderTransitionsTotal, _ = meter.Int64Counter(
		"tableside.orders.transitions.total",
		metric.WithDescription("Total number of order status transitions"),
		metric.WithUnit("{transition}"),
	)

	m.OrderConflictsTotal, _ = meter.Int64Counter(
		"tableside.orders.conflicts.total",
		metric.WithDescription("Total number of concurrent status updates that lost the compare-and-swap"),
		metric.WithUnit("{conflict}"),
	)

	m.OrderNumberRetriesTotal, _ = meter.Int64Counter(
		"tableside.orders.number_retries.total",
		metric.WithDescription("Total number of order number collisions retried"),
		metric.WithUnit("{retry}"),
	)

	// Menu cache metrics
	m.CacheHitsTotal, _ = meter.Int64Counter(
		"tableside.menu_cache.hits.total",
		metric.WithDescription("Total number of menu reads served from cache"),
		metric.WithUnit("{read}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"tableside.menu_cache.misses.total",
		metric.WithDescription("Total number of menu reads not found in cache"),
		metric.WithUnit("{read}"),
	)

	m.CacheFallbacksTotal, _ = meter.Int64Counter(
		"tableside.menu_cache.fallbacks.total",
		metric.WithDescription("Total number of menu reads that fell back to the store after a cache error or timeout"),
		metric.WithUnit("{read}"),
	)

	m.CachePopulateErrorsTotal, _ = meter.Int64Counter(
		"tableside.menu_cache.populate_errors.total",
		metric.WithDescription("Total number of failed background cache writes"),
		metric.WithUnit("{error}"),
	)

	m.CacheInvalidateErrorsTotal, _ = meter.Int64Counter(
		"tableside.menu_cache.invalidate_errors.total",
		metric.WithDescription("Total number of failed background cache invalidations"),
		metric.WithUnit("{error}"),
	)

	// Realtime metrics
	m.EventsPublishedTotal, _ = meter.Int64Counter(
		"tableside.realtime.events.published.total",
		metric.WithDescription("Total number of events delivered to subscriber queues"),
		metric.WithUnit("{event}"),
	)

	m.EventsDroppedTotal, _ = meter.Int64Counter(
		"tableside.realtime.events.dropped.total",
		metric.WithDescription("Total number of events dropped because a subscriber queue was full"),
		metric.WithUnit("{event}"),
	)

	m.ActiveConnections, _ = meter.Int64UpDownCounter(
		"tableside.realtime.connections.active",
		metric.WithDescription("Number of open realtime connections"),
		metric.WithUnit("{connection}"),
	)

	m.RelayErrorsTotal, _ = meter.Int64Counter(
		"tableside.realtime.relay.errors.total",
		metric.WithDescription("Total number of redis relay publish or subscribe errors"),
		metric.WithUnit("{error}"),
	)

	return m
}
