package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// requestContextKey is the key for RequestContext in context.Context
var requestContextKey = contextKey{}

// RequestContext holds request-scoped logging context
type RequestContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	RequestID string    // Middleware-assigned request ID
	Method    string    // HTTP method
	Path      string    // Request path
	ClientIP  string    // Client IP address (without port)
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given RequestContext
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext retrieves the RequestContext from context, or nil if not present
func FromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey).(*RequestContext)
	return rc
}

// NewRequestContext creates a new RequestContext for the given request line
func NewRequestContext(method, path string) *RequestContext {
	return &RequestContext{
		Method:    method,
		Path:      path,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the RequestContext
func (rc *RequestContext) Clone() *RequestContext {
	if rc == nil {
		return nil
	}
	return &RequestContext{
		TraceID:   rc.TraceID,
		SpanID:    rc.SpanID,
		RequestID: rc.RequestID,
		Method:    rc.Method,
		Path:      rc.Path,
		ClientIP:  rc.ClientIP,
		StartTime: rc.StartTime,
	}
}

// WithTrace returns a copy with trace info set
func (rc *RequestContext) WithTrace(traceID, spanID string) *RequestContext {
	clone := rc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// WithRequestID returns a copy with the request ID set
func (rc *RequestContext) WithRequestID(id string) *RequestContext {
	clone := rc.Clone()
	if clone != nil {
		clone.RequestID = id
	}
	return clone
}

// WithClientIP returns a copy with the client IP set
func (rc *RequestContext) WithClientIP(ip string) *RequestContext {
	clone := rc.Clone()
	if clone != nil {
		clone.ClientIP = ip
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (rc *RequestContext) DurationMs() float64 {
	if rc == nil || rc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(rc.StartTime).Microseconds()) / 1000.0
}
