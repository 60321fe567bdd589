package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so log aggregation
// and querying stay uniform across the request path and the reload path.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// HTTP request
	KeyRequestID  = "request_id" // Middleware-assigned request ID
	KeyMethod     = "method"     // HTTP method
	KeyPath       = "path"       // Request path
	KeyStatus     = "status"     // HTTP response status code
	KeyBytes      = "bytes"      // Response body bytes written
	KeyClientIP   = "client_ip"  // Client IP address
	KeyUserAgent  = "user_agent" // Client-supplied User-Agent header
	KeyDurationMs = "duration_ms"

	// Template lifecycle
	KeyGeneration = "generation" // Snapshot generation number
	KeyRoot       = "root"       // Watch root directory
	KeyFiles      = "files"      // Changed file names in a batch
	KeyTemplates  = "templates"  // Number of compiled templates

	// Generic
	KeyError     = "error"
	KeyAttempt   = "attempt"
	KeyComponent = "component"
)
