package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var searchSpanTracer = otel.Tracer("github.com/orderdesk/adminsearch/internal/platform/observability")

// SearchTracer is the advisory observability sink consumed opportunistically
// by the search components. Every method is safe on a nil receiver and never
// returns an error: failure or absence of the sink must not change search
// outcomes.
type SearchTracer struct {
	logger  *zap.Logger
	enabled bool
}

// NewSearchTracer builds a tracer writing to the supplied logger. A nil
// logger yields a tracer that only records spans.
func NewSearchTracer(logger *zap.Logger, enabled bool) *SearchTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchTracer{logger: logger, enabled: enabled}
}

// Enabled reports whether the tracer emits log entries.
func (t *SearchTracer) Enabled() bool {
	return t != nil && t.enabled
}

// Log emits one structured entry for a component action.
func (t *SearchTracer) Log(ctx context.Context, component, action string, fields map[string]any, level zapcore.Level) {
	if !t.Enabled() {
		return
	}
	logger := t.logger
	if ctxLogger := FromContext(ctx); ctxLogger != nil {
		logger = ctxLogger
	}
	zapFields := make([]zap.Field, 0, len(fields)+2)
	zapFields = append(zapFields, zap.String("component", component), zap.String("action", action))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	if checked := logger.Check(level, component+"."+action); checked != nil {
		checked.Write(zapFields...)
	}
}

// StartTimer opens a span for a component action and returns a stop function
// that records the elapsed duration. The stop function accepts optional
// result fields and is always safe to call, including on a nil tracer.
func (t *SearchTracer) StartTimer(ctx context.Context, component, action string) func(fields map[string]any) {
	if !t.Enabled() {
		return func(map[string]any) {}
	}

	_, span := searchSpanTracer.Start(ctx, component+"."+action, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("search.component", component),
		attribute.String("search.action", action),
	)
	started := time.Now()

	return func(fields map[string]any) {
		elapsed := time.Since(started)
		span.SetAttributes(attribute.Int64("search.elapsed_ms", elapsed.Milliseconds()))
		span.End()

		merged := make(map[string]any, len(fields)+1)
		for key, value := range fields {
			merged[key] = value
		}
		merged["elapsed_ms"] = elapsed.Milliseconds()
		t.Log(ctx, component, action, merged, zapcore.DebugLevel)
	}
}
