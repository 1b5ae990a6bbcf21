package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Observability owns the otel meter and tracer providers. A nil
// *Observability is valid and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	chatRequests    otelmetric.Int64Counter
	chatDuration    otelmetric.Float64Histogram
	toolInvocations otelmetric.Int64Counter
}

type options struct {
	registerer     promclient.Registerer
	spanProcessors []sdktrace.SpanProcessor
	global         bool
}

// Option customizes New.
type Option func(*options)

// WithRegisterer exports metrics to reg instead of the default registry.
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanProcessor attaches a span processor, such as a tracetest.SpanRecorder.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.global = false }
}

func New(serviceName string, opts ...Option) *Observability {
	cfg := options{global: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, sp := range cfg.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)

	o := &Observability{
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
	}
	if cfg.global {
		otel.SetTracerProvider(tracerProvider)
	}

	var exporterOpts []prometheus.Option
	if cfg.registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(cfg.registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	if cfg.global {
		otel.SetMeterProvider(provider)
	}

	meter := provider.Meter(serviceName)

	chatRequests, _ := meter.Int64Counter(
		"chat.requests",
		otelmetric.WithDescription("Number of chat requests handled"),
	)

	chatDuration, _ := meter.Float64Histogram(
		"chat.duration",
		otelmetric.WithDescription("Chat request duration"),
		otelmetric.WithUnit("ms"),
	)

	toolInvocations, _ := meter.Int64Counter(
		"tool.invocations",
		otelmetric.WithDescription("Number of tool invocations by tool and status"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.chatRequests = chatRequests
	o.chatDuration = chatDuration
	o.toolInvocations = toolInvocations
	return o
}

// Tracer returns the service tracer, or a no-op tracer on a nil receiver.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return o.tracer
}

func (o *Observability) RecordChat(ctx context.Context, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.chatRequests != nil {
		o.chatRequests.Add(ctx, 1, attrs)
	}
	if o.chatDuration != nil {
		o.chatDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordToolInvocation(ctx context.Context, tool, status string) {
	if o == nil || o.toolInvocations == nil {
		return
	}
	o.toolInvocations.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
