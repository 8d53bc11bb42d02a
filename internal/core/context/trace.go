// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext contains tracing information for one request or batch run.
type TraceContext struct {
	TraceID   string
	RequestID string
	RunID     string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetTraceID returns trace ID from context or generates new one.
func GetTraceID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return uuid.New().String()
}

// GetRunID returns the reconciliation run ID from context, or empty string.
func GetRunID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RunID
	}
	return ""
}

// NewTraceContext creates a new TraceContext with generated IDs.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		RequestID: uuid.New().String(),
	}
}

// NewRunTrace creates a TraceContext tied to a batch run.
func NewRunTrace(runID string) *TraceContext {
	return &TraceContext{
		TraceID: uuid.New().String(),
		RunID:   runID,
	}
}
