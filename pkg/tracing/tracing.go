// Package tracing sets up OpenTelemetry for the decision pipeline and
// carries trace context across envelopes, Kafka records and HTTP requests.
package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"verdict/internal/config"
)

const exporterTimeout = 5 * time.Second

// PipelineAttr tags every span with the pipeline that produced it.
const PipelineAttr = attribute.Key("verdict.pipeline")

type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.tp.Tracer(name)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.tp == nil {
		return nil
	}
	return tp.tp.Shutdown(ctx)
}

// Init installs the global tracer provider and the W3C propagators. A
// disabled config yields a provider that records nothing; propagation is
// still installed so inbound trace ids reach the logs.
func Init(cfg config.TracingConfig, serviceName, pipeline string) (*TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return &TracerProvider{tp: sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))}, nil
	}

	sampler, err := NewSampler(cfg.Sampler)
	if err != nil {
		return nil, err
	}

	if cfg.ServiceName != "" {
		serviceName = cfg.ServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if pipeline != "" {
		attrs = append(attrs, PipelineAttr.String(pipeline))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint)}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	return &TracerProvider{tp: tp}, nil
}

// NewSampler maps the configured sampler type. An empty type samples
// everything; an unknown one is an error rather than a silent default.
func NewSampler(cfg config.SamplerConfig) (sdktrace.Sampler, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "always_on":
		return sdktrace.AlwaysSample(), nil
	case "always_off":
		return sdktrace.NeverSample(), nil
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.Param), nil
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param)), nil
	default:
		return nil, fmt.Errorf("unknown sampler type %q", cfg.Type)
	}
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
