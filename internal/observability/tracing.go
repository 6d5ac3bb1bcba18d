package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName = "mobility-simulator"
	tracerName  = "github.com/signalsfoundry/mobility-simulator"

	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// Span exporters understood by InitTracing.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TracingConfig selects where run spans go. A run produces a handful of
// spans, so every trace is sampled.
type TracingConfig struct {
	// Exporter is one of ExporterNone, ExporterStdout or ExporterOTLP.
	// Empty means none.
	Exporter string
	// Endpoint is the OTLP gRPC collector address.
	Endpoint string
	// Output receives stdout-exported spans; os.Stderr when nil.
	Output io.Writer
}

// TracingConfigFromEnv reads SIM_TRACE_EXPORTER and SIM_OTLP_ENDPOINT.
func TracingConfigFromEnv() TracingConfig {
	return TracingConfig{
		Exporter: strings.ToLower(strings.TrimSpace(os.Getenv("SIM_TRACE_EXPORTER"))),
		Endpoint: os.Getenv("SIM_OTLP_ENDPOINT"),
	}
}

func (c TracingConfig) enabled() bool {
	return c.Exporter != "" && c.Exporter != ExporterNone
}

// InitTracing installs the global tracer provider for cfg and returns the
// function that flushes and stops it.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if !cfg.enabled() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	opt, err := spanProcessor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		opt,
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled", logging.String("exporter", cfg.Exporter))
	return tp.Shutdown, nil
}

// spanProcessor exports stdout spans synchronously so they interleave with
// the run's log lines; OTLP spans are batched.
func spanProcessor(ctx context.Context, cfg TracingConfig) (sdktrace.TracerProviderOption, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
		if err != nil {
			return nil, fmt.Errorf("stdout span exporter: %w", err)
		}
		return sdktrace.WithSyncer(exp), nil
	case ExporterOTLP:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp span exporter %s: %w", endpoint, err)
		}
		return sdktrace.WithBatcher(exp), nil
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes pending spans. It still runs when ctx has
// been cancelled, and a failure is only logged.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

// StartSpan starts a span for a simulation phase, tagged with the run
// name when there is one.
func StartSpan(ctx context.Context, name, runName string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := extra
	if runName != "" {
		attrs = append([]attribute.KeyValue{attribute.String("run", runName)}, extra...)
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
