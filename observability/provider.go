// Package observability installs the OpenTelemetry SDK providers that
// receive the spans and metrics recorded by package database.
//
// The database packages always record through the global otel providers.
// Without a call to NewProvider those are no-ops:
//
//	p, err := observability.NewProvider(cfg.Observability,
//		observability.WithSpanExporter(exporter),
//		observability.WithMetricReader(reader),
//	)
//	if err != nil {
//		return err
//	}
//	defer observability.Shutdown(p, 0)
package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-sqltx/config"
)

// Provider owns the tracer and meter providers.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and stops the providers.
	Shutdown(ctx context.Context) error
	// ForceFlush exports pending telemetry immediately.
	ForceFlush(ctx context.Context) error
}

// Option adds an exporter or reader to the provider.
type Option func(*options)

type options struct {
	traceOpts  []sdktrace.TracerProviderOption
	metricOpts []sdkmetric.Option
}

// WithSpanExporter exports spans in batches.
func WithSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.traceOpts = append(o.traceOpts, sdktrace.WithBatcher(exporter))
	}
}

// WithSyncSpanExporter exports every span as soon as it ends.
func WithSyncSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.traceOpts = append(o.traceOpts, sdktrace.WithSyncer(exporter))
	}
}

// WithMetricReader registers a metric reader, periodic or manual.
func WithMetricReader(reader sdkmetric.Reader) Option {
	return func(o *options) {
		o.metricOpts = append(o.metricOpts, sdkmetric.WithReader(reader))
	}
}

type provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	mu       sync.Mutex
	shutdown bool
}

// NewProvider creates the SDK providers described by cfg and installs them
// as the global otel providers. A disabled configuration yields a no-op
// provider and leaves the globals untouched.
func NewProvider(cfg config.ObservabilityConfig, opts ...Option) (Provider, error) {
	if !cfg.Enabled {
		return newNoopProvider(), nil
	}
	if cfg.Service.Name == "" {
		return nil, ErrMissingServiceName
	}
	if cfg.Trace.SampleRate < 0 || cfg.Trace.SampleRate > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, cfg.Trace.SampleRate)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := newResource(cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to create observability resource: %w", err)
	}

	traceOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Trace.SampleRate))),
	}, o.traceOpts...)
	metricOpts := append([]sdkmetric.Option{sdkmetric.WithResource(res)}, o.metricOpts...)

	p := &provider{
		tracerProvider: sdktrace.NewTracerProvider(traceOpts...),
		meterProvider:  sdkmetric.NewMeterProvider(metricOpts...),
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func newResource(svc config.ObservabilityServiceConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(svc.Name)}
	if svc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(svc.Version))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func (p *provider) TracerProvider() trace.TracerProvider { return p.tracerProvider }

func (p *provider) MeterProvider() metric.MeterProvider { return p.meterProvider }

// Shutdown stops both providers. Calling it again is a no-op.
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true

	return errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	return errors.Join(
		p.tracerProvider.ForceFlush(ctx),
		p.meterProvider.ForceFlush(ctx),
	)
}
