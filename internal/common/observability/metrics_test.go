package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_ExportsStageSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	obs := New("care-assistant-test", sdktrace.WithSyncer(exporter))
	t.Cleanup(obs.Shutdown)

	ctx, turn := obs.StartSpan(context.Background(), "turn", attribute.String("session.id", "s1"))
	_, route := obs.StartSpan(ctx, "route")
	route.End()
	turn.End()

	obs.RecordTurn(ctx, "analytical", "ok", 120*time.Millisecond)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "route", spans[0].Name)
	assert.Equal(t, "turn", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Contains(t, spans[1].Attributes, attribute.String("session.id", "s1"))
}

func TestNoop_RecordsNothing(t *testing.T) {
	obs := NewNoop()

	ctx, span := obs.StartSpan(context.Background(), "warehouse")
	span.End()
	obs.RecordTurn(ctx, "conversational", "ok", time.Millisecond)
	obs.Shutdown()
}
