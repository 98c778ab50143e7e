package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type providerConfig struct {
	serviceName    string
	serviceVersion string
	traceExporter  sdktrace.SpanExporter
}

// ProviderOption configures [InitProvider].
type ProviderOption func(*providerConfig)

// WithServiceName sets the service name reported in telemetry. Defaults to
// "duplex".
func WithServiceName(name string) ProviderOption {
	return func(c *providerConfig) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithServiceVersion sets the service version reported in telemetry.
func WithServiceVersion(version string) ProviderOption {
	return func(c *providerConfig) { c.serviceVersion = version }
}

// WithTraceExporter sets the span exporter. When unset, spans are recorded
// but not exported, which keeps turn and stage spans visible to in-process
// consumers without requiring a collector.
func WithTraceExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(c *providerConfig) { c.traceExporter = exp }
}

// InitProvider installs the global OTel SDK providers for a host process:
// a meter provider bridged to Prometheus, so the instruments in [Metrics]
// surface on /metrics via promhttp, and a tracer provider carrying the
// per-turn spans emitted by the pipeline.
//
// The returned shutdown function flushes and closes both providers. Call it
// in a defer from main().
func InitProvider(ctx context.Context, opts ...ProviderOption) (func(context.Context) error, error) {
	cfg := providerConfig{serviceName: "duplex"}
	for _, o := range opts {
		o(&cfg)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.serviceName),
			semconv.ServiceVersion(cfg.serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.traceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.traceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}
	return shutdown, nil
}
