package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "care-assistant/qrrp"

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter         otelmetric.Meter
	tracer        trace.Tracer
	turnCounter   otelmetric.Int64Counter
	turnDuration  otelmetric.Float64Histogram
}

// New sets up the global meter and tracer providers. Span exporters and processors
// are passed as tracer provider options; without any, spans are sampled but not exported.
func New(serviceName string, traceOpts ...sdktrace.TracerProviderOption) *Observability {
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(instrumentationName)

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{tracerProvider: tp, tracer: tracer}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	turnCounter, _ := meter.Int64Counter(
		"turns.processed",
		otelmetric.WithDescription("Number of conversation turns processed"),
	)

	turnDuration, _ := meter.Float64Histogram(
		"turns.duration",
		otelmetric.WithDescription("Turn processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          meter,
		tracer:         tracer,
		turnCounter:    turnCounter,
		turnDuration:   turnDuration,
	}
}

// NewNoop returns an instance that records nothing. Used by tests and the job worker fallback.
func NewNoop() *Observability {
	return &Observability{tracer: otel.Tracer(instrumentationName)}
}

// StartSpan opens a span for one pipeline stage.
func (o *Observability) StartSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return tracer.Start(ctx, stage, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordTurn(ctx context.Context, approach, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("approach", approach),
		attribute.String("status", status),
	)
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, attrs)
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
