package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds operation-scoped logging context that follows a request
// from state-machine start through every job it posts.
type LogContext struct {
	TraceID   string    // correlation id for the client-visible operation
	SpanID    string    // correlation id for the current state-machine step
	OpCode    int       // state machine op code (0 if not yet known)
	ContextID int       // job-engine context this operation posts into
	Handle    string     // target object handle, hex, if any
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for an operation starting now.
func NewLogContext(traceID string) *LogContext {
	return &LogContext{
		TraceID:   traceID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		OpCode:    lc.OpCode,
		ContextID: lc.ContextID,
		Handle:    lc.Handle,
		StartTime: lc.StartTime,
	}
}

// WithOp returns a copy with the op code and context id set
func (lc *LogContext) WithOp(opCode, contextID int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OpCode = opCode
		clone.ContextID = contextID
	}
	return clone
}

// WithHandle returns a copy with the target handle set
func (lc *LogContext) WithHandle(handle string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Handle = handle
	}
	return clone
}

// WithSpan returns a copy with a new span id set
func (lc *LogContext) WithSpan(spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
