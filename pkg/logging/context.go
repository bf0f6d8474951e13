package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	SourceKey      = "source"
	SourceIDKey    = "source_id"
	ServiceNameKey = "service_name"
)

type ctxKey string

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey(TraceIDKey), traceID)
}

// WithMessage tags ctx with the origin of the message being decided.
func WithMessage(ctx context.Context, source, sourceID string) context.Context {
	ctx = context.WithValue(ctx, ctxKey(SourceKey), source)
	return context.WithValue(ctx, ctxKey(SourceIDKey), sourceID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ctxKey(ServiceNameKey), serviceName)
}

func value(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string     { return value(ctx, TraceIDKey) }
func GetSource(ctx context.Context) string      { return value(ctx, SourceKey) }
func GetSourceID(ctx context.Context) string    { return value(ctx, SourceIDKey) }
func GetServiceName(ctx context.Context) string { return value(ctx, ServiceNameKey) }

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)
	for _, key := range []string{TraceIDKey, SourceKey, SourceIDKey, ServiceNameKey} {
		if v := value(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}
	return fields
}
