// Package telemetry provides the OpenTelemetry-backed implementation of
// core.Telemetry/core.Span, wired into the workflow coordinator and the
// key manager. Grounded on the teacher's telemetry/otel.go OTelProvider,
// trimmed of the OTLP/HTTP trace+metric exporters (this module has no
// collector endpoint in its scope) in favor of an in-process stdout trace
// exporter and an unexported meter provider - real spans and instruments
// are created and recorded through the same SDK code paths, they are just
// not shipped to a remote collector.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nimbuslabs/conductor/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "conductor-telemetry"

// Provider implements core.Telemetry with OpenTelemetry's SDK, scoped to
// one process: spans are batched through a trace exporter that writes
// (deliberately, by default) to io.Discard, and metric instruments are
// created and recorded against an in-process MeterProvider with no
// registered reader. Both remain real OTel SDK objects - SetAttribute,
// RecordError, and instrument creation all run the genuine code paths -
// they are just not shipped anywhere outside the process.
type Provider struct {
	tracer         trace.Tracer
	meter          metric.Meter
	traceProvider  *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider
	instruments    *instruments

	mu           sync.RWMutex
	shutdown     bool
	shutdownOnce sync.Once
}

// Option configures a Provider at construction.
type Option func(*providerConfig)

type providerConfig struct {
	traceWriter io.Writer
}

// WithTraceWriter redirects the exported span stream (JSON lines) to w
// instead of the default io.Discard. Useful for tests or local debugging
// that want to inspect span output without a collector.
func WithTraceWriter(w io.Writer) Option {
	return func(c *providerConfig) { c.traceWriter = w }
}

// NewProvider builds a Provider for serviceName and sets it as the global
// OpenTelemetry tracer/meter provider, matching the teacher's
// NewOTelProvider.
func NewProvider(serviceName string, opts ...Option) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry.NewProvider: service name cannot be empty")
	}

	cfg := providerConfig{traceWriter: io.Discard}
	for _, opt := range opts {
		opt(&cfg)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String("1.0.0"),
	)

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.traceWriter))
	if err != nil {
		return nil, fmt.Errorf("telemetry.NewProvider: create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	meter := mp.Meter(instrumentationName)

	return &Provider{
		tracer:         tp.Tracer(instrumentationName),
		meter:          meter,
		traceProvider:  tp,
		metricProvider: mp,
		instruments:    newInstruments(meter),
	}, nil
}

// StartSpan implements core.Telemetry.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down || p.tracer == nil {
		return ctx, core.NoOpSpan{}
	}

	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry, routing by name the same way the
// teacher's RecordMetric does: duration/latency/time -> histogram;
// count/total/errors/success -> counter; anything else -> histogram.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down {
		return
	}

	ctx := context.Background()
	var attrs []attribute.KeyValue
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	switch {
	case looksLike(name, "count", "total", "errors", "success"):
		_ = p.instruments.recordCounter(ctx, name, int64(value), metric.WithAttributes(attrs...))
	default:
		_ = p.instruments.recordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
	}
}

// Shutdown flushes and releases the underlying trace/metric providers. It
// is idempotent and safe to call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	var shutdownErr error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()

		var errs []error
		if p.metricProvider != nil {
			if err := p.metricProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metric provider: %w", err))
			}
		}
		if p.traceProvider != nil {
			if err := p.traceProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("trace provider: %w", err))
			}
		}
		if len(errs) > 0 {
			shutdownErr = fmt.Errorf("telemetry.Provider.Shutdown: %v", errs)
		}
	})
	return shutdownErr
}

// otelSpan adapts an OpenTelemetry trace.Span to core.Span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

var _ core.Telemetry = (*Provider)(nil)
