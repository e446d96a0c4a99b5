package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/concord/internal/adapters/telemetry"
	"go.trai.ch/concord/internal/core/ports"
)

func setupMonitor() (*tracetest.SpanRecorder, *trace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	return sr, tp
}

func attrs(kv []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kv))
	for _, a := range kv {
		out[a.Key] = a.Value
	}
	return out
}

func TestOTelTracer_StartAppliesOptions(t *testing.T) {
	sr, tp := setupMonitor()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracer("test-tracer")
	_, span := tracer.Start(context.Background(), "propagate",
		ports.WithAttribute("key", "researcher:r1"),
		ports.WithAttribute("version", int64(7)),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "propagate", spans[0].Name())

	got := attrs(spans[0].Attributes())
	assert.Equal(t, "researcher:r1", got["key"].AsString())
	assert.Equal(t, int64(7), got["version"].AsInt64())
}

func TestOTelSpan_SetAttribute(t *testing.T) {
	sr, tp := setupMonitor()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := telemetry.NewOTelTracer("test-tracer").Start(context.Background(), "attrs")
	span.SetAttribute("string", "value")
	span.SetAttribute("int", 42)
	span.SetAttribute("int64", int64(43))
	span.SetAttribute("float", 1.5)
	span.SetAttribute("bool", true)
	span.SetAttribute("slice", []string{"a", "b"})
	span.SetAttribute("other", struct{ A int }{A: 1})
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	got := attrs(spans[0].Attributes())
	assert.Equal(t, "value", got["string"].AsString())
	assert.Equal(t, int64(42), got["int"].AsInt64())
	assert.Equal(t, int64(43), got["int64"].AsInt64())
	assert.InDelta(t, 1.5, got["float"].AsFloat64(), 0)
	assert.True(t, got["bool"].AsBool())
	assert.Equal(t, []string{"a", "b"}, got["slice"].AsStringSlice())
	assert.Equal(t, "{1}", got["other"].AsString())
}

func TestOTelSpan_RecordErrorAndWrite(t *testing.T) {
	sr, tp := setupMonitor()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := telemetry.NewOTelTracer("test-tracer").Start(context.Background(), "failing")
	n, err := span.Write([]byte("retrying"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	span.RecordError(errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)

	var names []string
	for _, ev := range spans[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "log")
	assert.Contains(t, names, "exception")
}
