package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type callContextKey struct{}

// CallMeta correlates the log lines of one gateway call.
type CallMeta struct {
	RequestID string
	TraceID   string
	SpanID    string
}

// CallMetaFromContext returns the metadata attached by EnsureCallMeta.
func CallMetaFromContext(ctx context.Context) (CallMeta, bool) {
	if ctx == nil {
		return CallMeta{}, false
	}
	meta, ok := ctx.Value(callContextKey{}).(CallMeta)
	return meta, ok && meta.RequestID != ""
}

// EnsureCallMeta reuses the request id already on ctx or mints a new one,
// and captures the active trace span when there is one.
func EnsureCallMeta(ctx context.Context) (context.Context, CallMeta) {
	if ctx == nil {
		ctx = context.Background()
	}
	if meta, ok := CallMetaFromContext(ctx); ok {
		return ctx, meta
	}
	meta := CallMeta{RequestID: uuid.NewString()}
	if spanCtx := trace.SpanFromContext(ctx).SpanContext(); spanCtx.IsValid() {
		meta.TraceID = spanCtx.TraceID().String()
		meta.SpanID = spanCtx.SpanID().String()
	}
	return context.WithValue(ctx, callContextKey{}, meta), meta
}

// CallLogger decorates base with the call metadata found on ctx.
func CallLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	meta, ok := CallMetaFromContext(ctx)
	if !ok {
		return base
	}
	fields := []zap.Field{RequestIDField(meta.RequestID)}
	if meta.TraceID != "" {
		fields = append(fields, zap.String(FieldTraceID, meta.TraceID), zap.String(FieldSpanID, meta.SpanID))
	}
	return base.With(fields...)
}
