package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Bridge implements sdktrace.SpanProcessor to record span durations as metrics.
type Bridge struct {
	metrics *Metrics
}

// NewBridge returns a new Bridge.
func NewBridge(metrics *Metrics) *Bridge {
	return &Bridge{
		metrics: metrics,
	}
}

// OnStart is called when a span starts.
func (b *Bridge) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd is called when a span ends.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.metrics == nil {
		return
	}
	if !s.SpanContext().IsValid() {
		return
	}

	status := "ok"
	if s.Status().Code == codes.Error {
		status = "error"
	}
	b.metrics.spanDuration.WithLabelValues(s.Name(), status).Observe(s.EndTime().Sub(s.StartTime()).Seconds())
}

// Shutdown is called when the SDK shuts down.
func (b *Bridge) Shutdown(context.Context) error {
	return nil
}

// ForceFlush exports all ended spans that have not yet been exported.
func (b *Bridge) ForceFlush(context.Context) error {
	return nil
}

// Setup registers a global tracer provider feeding the given processors and
// returns it so the caller can shut it down.
func Setup(processors ...sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	opts := make([]sdktrace.TracerProviderOption, 0, len(processors))
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp
}
