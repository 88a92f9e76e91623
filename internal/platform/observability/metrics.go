package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/summit-offroad/api"

// FunnelMetrics carries the counters the offer pipeline reports.
type FunnelMetrics struct {
	offersServed    metric.Int64Counter
	oracleFallbacks metric.Int64Counter
	rateLimited     metric.Int64Counter
}

// NewFunnelMetrics registers the funnel counters on the global meter provider.
func NewFunnelMetrics() (*FunnelMetrics, error) {
	meter := otel.Meter(meterName)

	offersServed, err := meter.Int64Counter("funnel.offers.served",
		metric.WithDescription("Offers returned to the storefront, by position"))
	if err != nil {
		return nil, err
	}
	oracleFallbacks, err := meter.Int64Counter("funnel.oracle.fallbacks",
		metric.WithDescription("Oracle calls that fell through to the rule-based path"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("funnel.requests.rate_limited",
		metric.WithDescription("Requests denied by the sliding-window limiter"))
	if err != nil {
		return nil, err
	}

	return &FunnelMetrics{
		offersServed:    offersServed,
		oracleFallbacks: oracleFallbacks,
		rateLimited:     rateLimited,
	}, nil
}

// RecordOffersServed counts offers delivered for a funnel position.
func (m *FunnelMetrics) RecordOffersServed(ctx context.Context, position string, count int) {
	if m == nil || m.offersServed == nil {
		return
	}
	m.offersServed.Add(ctx, int64(count), metric.WithAttributes(attribute.String("position", position)))
}

// RecordOracleFallback counts a single degraded-oracle resolution.
func (m *FunnelMetrics) RecordOracleFallback(ctx context.Context, operation string) {
	if m == nil || m.oracleFallbacks == nil {
		return
	}
	m.oracleFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordRateLimited counts a denied request.
func (m *FunnelMetrics) RecordRateLimited(ctx context.Context) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.Add(ctx, 1)
}
