// Package telemetry wires OpenTelemetry export for autopr.
//
// New registers OTLP-backed tracer and meter providers as the otel
// globals; the pipeline and HTTP server pick them up from there. A failed
// exporter leaves the corresponding global at its no-op default and marks
// the instance degraded instead of erroring: a run must not abort because
// the collector is down.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Telemetry owns the OTLP-backed providers and flushes them at shutdown.
type Telemetry struct {
	shutdownGrace time.Duration

	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider

	degraded bool
}

// New validates cfg, builds the providers, and registers them globally.
// With telemetry disabled it returns an inert instance whose Shutdown is a
// no-op.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{shutdownGrace: cfg.ShutdownGrace}
	if !cfg.Enabled {
		return t, nil
	}

	// A standalone resource avoids schema URL conflicts with
	// resource.Default(), which follows a different semconv version.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	if exp, err := newTraceExporter(ctx, cfg); err != nil {
		t.degraded = true
	} else {
		t.traces = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRate))),
		)
		otel.SetTracerProvider(t.traces)
	}

	if exp, err := newMetricExporter(ctx, cfg); err != nil {
		t.degraded = true
	} else {
		t.metrics = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
				sdkmetric.WithInterval(cfg.ExportInterval))),
		)
		otel.SetMeterProvider(t.metrics)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// sampler maps the configured rate onto a trace sampler, clamping the ends
// so 1.0 is exactly always and 0 exactly never.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes buffered spans and metrics. Pipeline runs are short, so
// anything not flushed here is lost; when the context has no deadline the
// configured grace period is applied.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.shutdownGrace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.shutdownGrace)
		defer cancel()
	}

	var errs []error
	if t.traces != nil {
		if err := t.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing traces: %w", err))
		}
	}
	if t.metrics != nil {
		if err := t.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Degraded reports whether an exporter failed to start.
func (t *Telemetry) Degraded() bool {
	return t == nil || t.degraded
}
