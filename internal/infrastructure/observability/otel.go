package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/creatorexplorer/backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount    metric.Int64Counter
	RequestDuration metric.Float64Histogram
	DBQueryDuration metric.Float64Histogram
	CacheHitCount   metric.Int64Counter
	CacheMissCount  metric.Int64Counter

	ProviderCallCount    metric.Int64Counter
	ProviderCallDuration metric.Float64Histogram
	CreditsSpent         metric.Int64Counter
	PrefetchCount        metric.Int64Counter
	EnrichmentDropped    metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing and metrics export
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		GetLogger().Warn().Err(err).Msg("runtime metrics disabled")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics against the global meter
// provider (a no-op provider when Setup was not called)
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	if m.RequestCount, err = meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.DBQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.CacheHitCount, err = meter.Int64Counter(
		"explorer.cache.hit.count",
		metric.WithDescription("Number of explorer page cache hits"),
	); err != nil {
		return nil, err
	}

	if m.CacheMissCount, err = meter.Int64Counter(
		"explorer.cache.miss.count",
		metric.WithDescription("Number of explorer page cache misses"),
	); err != nil {
		return nil, err
	}

	if m.ProviderCallCount, err = meter.Int64Counter(
		"creatordb.call.count",
		metric.WithDescription("Number of creator API calls by endpoint and outcome"),
	); err != nil {
		return nil, err
	}

	if m.ProviderCallDuration, err = meter.Float64Histogram(
		"creatordb.call.duration",
		metric.WithDescription("Creator API call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.CreditsSpent, err = meter.Int64Counter(
		"creatordb.credits.spent",
		metric.WithDescription("Creator API credits consumed"),
	); err != nil {
		return nil, err
	}

	if m.PrefetchCount, err = meter.Int64Counter(
		"explorer.prefetch.count",
		metric.WithDescription("Background page prefetches by outcome"),
	); err != nil {
		return nil, err
	}

	if m.EnrichmentDropped, err = meter.Int64Counter(
		"explorer.enrichment.dropped",
		metric.WithDescription("Identities dropped because their profile lookup failed"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request metric
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

// RecordCacheHit records a cache hit. layer is "record" or "page".
func RecordCacheHit(ctx context.Context, metrics *Metrics, layer, platform string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.layer", layer),
		attribute.String("platform", platform),
	))
}

// RecordCacheMiss records a cache miss. layer is "record" or "page".
func RecordCacheMiss(ctx context.Context, metrics *Metrics, layer, platform string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.layer", layer),
		attribute.String("platform", platform),
	))
}

// RecordProviderCall records one creator API call
func RecordProviderCall(ctx context.Context, metrics *Metrics, endpoint, outcome string, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("creatordb.endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	metrics.ProviderCallCount.Add(ctx, 1, attrs)
	metrics.ProviderCallDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCreditsSpent records consumed provider credits
func RecordCreditsSpent(ctx context.Context, metrics *Metrics, platform string, credits int) {
	if metrics == nil || credits <= 0 {
		return
	}
	metrics.CreditsSpent.Add(ctx, int64(credits), metric.WithAttributes(attribute.String("platform", platform)))
}

// RecordPrefetch records a prefetch outcome: "fetched", "skipped" or "failed"
func RecordPrefetch(ctx context.Context, metrics *Metrics, outcome string) {
	if metrics == nil {
		return
	}
	metrics.PrefetchCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordEnrichmentDropped records identities lost to failed profile lookups
func RecordEnrichmentDropped(ctx context.Context, metrics *Metrics, platform string, n int) {
	if metrics == nil || n <= 0 {
		return
	}
	metrics.EnrichmentDropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("platform", platform)))
}
