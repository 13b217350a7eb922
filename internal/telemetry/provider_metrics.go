package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const providerMeterName = "github.com/saveecobot/ecosensor/internal/telemetry"

// ProviderMetrics records upstream fetches and the state of the station snapshot.
// A nil *ProviderMetrics records nothing.
type ProviderMetrics struct {
	provider attribute.KeyValue

	fetchDuration metric.Float64Histogram
	fetches       metric.Int64Counter
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	rejected      metric.Int64Counter
	stations      metric.Int64Gauge
}

// NewProviderMetrics creates the instruments for provider on the global meter provider.
func NewProviderMetrics(provider string) (*ProviderMetrics, error) {
	meter := otel.Meter(providerMeterName)
	m := &ProviderMetrics{provider: attribute.String("provider.name", provider)}

	var errs [6]error
	m.fetchDuration, errs[0] = meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Time spent fetching the station feed"), metric.WithUnit("s"))
	m.fetches, errs[1] = meter.Int64Counter("provider.request.total",
		metric.WithDescription("Station feed fetches"), metric.WithUnit("{request}"))
	m.hits, errs[2] = meter.Int64Counter("provider.cache.hit",
		metric.WithDescription("Refreshes answered by a snapshot younger than the cache TTL"), metric.WithUnit("{hit}"))
	m.misses, errs[3] = meter.Int64Counter("provider.cache.miss",
		metric.WithDescription("Refreshes that fetched the feed"), metric.WithUnit("{miss}"))
	m.rejected, errs[4] = meter.Int64Counter("provider.entries.rejected",
		metric.WithDescription("Feed entries dropped by validation"), metric.WithUnit("{entry}"))
	m.stations, errs[5] = meter.Int64Gauge("provider.cache.stations",
		metric.WithDescription("Stations in the current snapshot"), metric.WithUnit("{station}"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ProviderMetrics) with(operation string, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{m.provider, attribute.String("provider.operation", operation)}, extra...)
	return metric.WithAttributes(attrs...)
}

// RecordRequest records one feed fetch. Failed fetches get their own series.
func (m *ProviderMetrics) RecordRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	var opt metric.MeasurementOption
	if err != nil {
		opt = m.with(operation, attribute.Bool("error", true))
	} else {
		opt = m.with(operation)
	}

	// Recorded after the request context may already be cancelled.
	ctx := context.Background()
	m.fetchDuration.Record(ctx, duration.Seconds(), opt)
	m.fetches.Add(ctx, 1, opt)
}

// RecordCacheHit counts a refresh that reused the current snapshot.
func (m *ProviderMetrics) RecordCacheHit(operation string) {
	if m != nil {
		m.hits.Add(context.Background(), 1, m.with(operation))
	}
}

// RecordCacheMiss counts a refresh that went upstream.
func (m *ProviderMetrics) RecordCacheMiss(operation string) {
	if m != nil {
		m.misses.Add(context.Background(), 1, m.with(operation))
	}
}

// RecordSnapshot records the size of a freshly installed snapshot and how many entries were dropped.
func (m *ProviderMetrics) RecordSnapshot(stations, rejected int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	opt := metric.WithAttributes(m.provider)
	m.stations.Record(ctx, int64(stations), opt)
	if rejected > 0 {
		m.rejected.Add(ctx, int64(rejected), opt)
	}
}
