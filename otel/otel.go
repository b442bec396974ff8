package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/octabyte/sitemon/otel/metrics"
)

// Config holds the OTLP export settings of the session client.
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP/HTTP endpoint, e.g. "localhost:4318"
	ServiceName string
	Version     string
	Headers     map[string]string // e.g. {"authorization": "api-key"}
	Environment string
	SampleRate  float64 // 0.0 to 1.0
}

// Init installs the global tracer and meter providers and creates the
// session instruments. The returned function flushes and stops both.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	res := newResource(cfg)

	tracerShutdown, err := setupTracing(ctx, res, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup tracing: %w", err)
	}

	metricsShutdown, err := setupMetrics(ctx, res, cfg)
	if err != nil {
		_ = tracerShutdown(ctx)
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := metrics.Init(cfg.ServiceName); err != nil {
		_ = tracerShutdown(ctx)
		_ = metricsShutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tracerShutdown(ctx), metricsShutdown(ctx))
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.ServiceName == "" {
		return fmt.Errorf("ServiceName is required")
	}
	if cfg.Endpoint == "" {
		return fmt.Errorf("Endpoint is required")
	}
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("SampleRate must be between 0.0 and 1.0, got %f", cfg.SampleRate)
	}
	return nil
}

func newResource(cfg Config) *resource.Resource {
	hostName, _ := os.Hostname()

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironment(cfg.Environment),
		semconv.HostName(hostName),
	)
}

func insecure(endpoint string) bool {
	return !strings.HasPrefix(endpoint, "https")
}

func setupTracing(ctx context.Context, res *resource.Resource, cfg Config) (func(context.Context) error, error) {
	exporterOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")),
	}
	if len(cfg.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if insecure(cfg.Endpoint) {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return traceProvider.Shutdown, nil
}

func setupMetrics(ctx context.Context, res *resource.Resource, cfg Config) (func(context.Context) error, error) {
	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")),
	}
	if len(cfg.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}
	if insecure(cfg.Endpoint) {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	metricExporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(meterProvider)

	return meterProvider.Shutdown, nil
}
