package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricsOnce     sync.Once
	cacheOperations metric.Int64Counter
	cacheDuration   metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/google-token-provider/internal/cache")

		var err error
		cacheOperations, err = meter.Int64Counter(
			"token_cache.operations",
			metric.WithDescription("Token cache operations by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		cacheDuration, err = meter.Float64Histogram(
			"token_cache.operation.duration",
			metric.WithDescription("Token cache operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a TokenCache with metrics and span attributes. Keys
// are not recorded: they contain the service account and subject.
type Instrumented struct {
	wrapped   TokenCache
	cacheType string
}

// NewInstrumented creates an instrumented cache wrapper.
func NewInstrumented(cache TokenCache, cacheType string) *Instrumented {
	initMetrics()
	return &Instrumented{
		wrapped:   cache,
		cacheType: cacheType,
	}
}

// Get retrieves a token from the cache, recording a hit, miss or error.
func (i *Instrumented) Get(ctx context.Context, key string) (Token, bool, error) {
	start := time.Now()
	value, found, err := i.wrapped.Get(ctx, key)

	status := "miss"
	switch {
	case err != nil:
		status = "error"
	case found:
		status = "hit"
	}
	i.record(ctx, "get", status, start)

	return value, found, err
}

// Set stores a token in the cache.
func (i *Instrumented) Set(ctx context.Context, key string, value Token) error {
	start := time.Now()
	err := i.wrapped.Set(ctx, key, value)
	i.record(ctx, "set", outcome(err), start)

	return err
}

// Invalidate removes a token from the cache.
func (i *Instrumented) Invalidate(ctx context.Context, key string) error {
	start := time.Now()
	err := i.wrapped.Invalidate(ctx, key)
	i.record(ctx, "invalidate", outcome(err), start)

	return err
}

// Close releases any resources held by the cache.
func (i *Instrumented) Close() error {
	return i.wrapped.Close()
}

func (i *Instrumented) record(ctx context.Context, operation, status string, start time.Time) {
	duration := time.Since(start)

	typeAttr := attribute.String("cache.type", i.cacheType)
	opAttr := attribute.String("cache.operation", operation)

	if cacheOperations != nil {
		cacheOperations.Add(ctx, 1, metric.WithAttributes(typeAttr, opAttr, attribute.String("cache.status", status)))
	}
	if cacheDuration != nil {
		cacheDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(typeAttr, opAttr))
	}

	trace.SpanFromContext(ctx).SetAttributes(
		typeAttr,
		attribute.String("cache."+operation+".status", status),
		attribute.Float64("cache."+operation+".duration", duration.Seconds()),
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
