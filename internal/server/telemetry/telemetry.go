// Package telemetry installs the OpenTelemetry meter and tracer providers.
// Metrics are pulled through a manual reader and served in Prometheus text
// format; spans go to an OTLP/gRPC collector when one is configured.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookauth/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	ServiceName string
	// Endpoint is the OTLP/gRPC collector URL. http:// dials without TLS.
	Endpoint string
}

type options struct {
	spanExporter sdktrace.SpanExporter
}

type Option func(*options)

// WithSpanExporter exports spans synchronously to e instead of OTLP.
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = e }
}

// Provider owns the SDK providers installed as the otel globals.
type Provider struct {
	reader *sdkmetric.ManualReader
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
}

// New builds the providers and installs them with otel.SetMeterProvider,
// otel.SetTracerProvider and a W3C trace-context propagator.
func New(ctx context.Context, cfg Config, logger logging.Logger, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	reader := sdkmetric.NewManualReader()
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch {
	case o.spanExporter != nil:
		traceOpts = append(traceOpts, sdktrace.WithSyncer(o.spanExporter))
	case cfg.Endpoint != "":
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			_ = meters.Shutdown(ctx)
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
	}
	traces := sdktrace.NewTracerProvider(traceOpts...)

	otel.SetMeterProvider(meters)
	otel.SetTracerProvider(traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info(ctx, "telemetry initialised", "service", cfg.ServiceName, "otlp_endpoint", cfg.Endpoint)

	return &Provider{reader: reader, meters: meters, traces: traces}, nil
}

func (p *Provider) Meter(name string) metric.Meter {
	return p.meters.Meter(name)
}

func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.traces
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.traces.Shutdown(ctx), p.meters.Shutdown(ctx))
}
