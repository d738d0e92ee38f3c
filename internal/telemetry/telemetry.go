package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config controls OTLP export. The exporter endpoint and headers come from
// the standard OTEL_EXPORTER_OTLP_* environment variables.
type Config struct {
	ServiceName    string
	Version        string
	SampleRatio    float64
	ExportInterval time.Duration
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs global trace and meter providers. A provider that fails to
// start is skipped with a warning so the service still runs.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = 10 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithContainer(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceShutdown, err := initTraceProvider(ctx, res, cfg.SampleRatio)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		traceShutdown = noopShutdown
	}

	metricShutdown, err := initMeterProvider(ctx, res, cfg.ExportInterval)
	if err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
		metricShutdown = noopShutdown
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.ServiceName).
		Str("version", cfg.Version).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("telemetry initialized")

	return func(ctx context.Context) error {
		return errors.Join(traceShutdown(ctx), metricShutdown(ctx))
	}, nil
}

func initTraceProvider(ctx context.Context, res *resource.Resource, ratio float64) (ShutdownFunc, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func initMeterProvider(ctx context.Context, res *resource.Resource, interval time.Duration) (ShutdownFunc, error) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
