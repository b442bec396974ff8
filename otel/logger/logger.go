package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/octabyte/sitemon/utils/logger"
)

// InfoCtx logs an info message with the trace of ctx
func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.LogInfo(msg, withTrace(ctx, fields)...)
}

// ErrorCtx logs an error message with the trace of ctx
func ErrorCtx(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.LogError(msg, withTrace(ctx, fields)...)
}

// WarnCtx logs a warning message with the trace of ctx
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.LogWarn(msg, withTrace(ctx, fields)...)
}

// DebugCtx logs a debug message with the trace of ctx
func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.LogDebug(msg, withTrace(ctx, fields)...)
}

// TraceFields returns trace_id and span_id of ctx, or nothing outside a trace.
func TraceFields(ctx context.Context) []zap.Field {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	}
}

func withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	return append(fields, TraceFields(ctx)...)
}

// GetTraceID extracts the trace ID from context
func GetTraceID(ctx context.Context) string {
	spanContext := trace.SpanContextFromContext(ctx)
	if spanContext.IsValid() {
		return spanContext.TraceID().String()
	}
	return ""
}
