package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/internal/telemetry"
	"github.com/kilnproject/kiln/pkg/metrics"
)

// sensitiveHeaders never appear in logs or span attributes.
var sensitiveHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"Cookie":              {},
	"Set-Cookie":          {},
	"X-Api-Key":           {},
}

// redactHeaders returns a copy of h with sensitive values masked.
func redactHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if _, sensitive := sensitiveHeaders[http.CanonicalHeaderKey(name)]; sensitive {
			out[name] = []string{"[redacted]"}
			continue
		}
		out[name] = values
	}
	return out
}

// httpFlavor maps a request protocol to its version attribute value.
// Unknown protocols map to the empty string.
func httpFlavor(proto string) string {
	switch proto {
	case "HTTP/0.9":
		return "0.9"
	case "HTTP/1.0":
		return "1.0"
	case "HTTP/1.1":
		return "1.1"
	case "HTTP/2.0":
		return "2.0"
	case "HTTP/3.0":
		return "3.0"
	default:
		return ""
	}
}

// spanStatus classifies a response code: 2xx and 3xx are success, 4xx and
// 5xx are errors, anything else is left unset.
func spanStatus(status int) codes.Code {
	switch {
	case status >= 200 && status < 400:
		return codes.Ok
	case status >= 400 && status < 600:
		return codes.Error
	default:
		return codes.Unset
	}
}

// Tracing opens one server span per request.
//
// The incoming headers are consulted for trace context, but the extracted
// context only becomes the parent when it is both valid and remote.
// Anything else, including a context smuggled in from the same process,
// starts a fresh root trace.
type Tracing struct {
	tracer trace.Tracer
}

func NewTracing(tracer trace.Tracer) *Tracing {
	return &Tracing{tracer: tracer}
}

func (t *Tracing) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parent := r.Context()
		extracted := otel.GetTextMapPropagator().Extract(parent, propagation.HeaderCarrier(r.Header))
		if sc := trace.SpanContextFromContext(extracted); sc.IsValid() && sc.IsRemote() {
			parent = extracted
		}

		ctx, span := t.tracer.Start(parent, telemetry.SpanRequest,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				telemetry.HTTPMethod(r.Method),
				telemetry.HTTPTarget(r.URL.RequestURI()),
				telemetry.HTTPFlavor(httpFlavor(r.Proto)),
				telemetry.HTTPUserAgent(r.UserAgent()),
			),
		)
		defer span.End()

		reqCtx := logger.NewRequestContext(r.Method, r.URL.Path).
			WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)).
			WithRequestID(middleware.GetReqID(ctx)).
			WithClientIP(r.RemoteAddr)
		ctx = logger.WithContext(ctx, reqCtx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			// Handler wrote nothing; the net/http default applies
			status = http.StatusOK
		}
		span.SetAttributes(telemetry.HTTPStatusCode(status))
		if code := spanStatus(status); code != codes.Unset {
			span.SetStatus(code, "")
		}
	})
}

// requestLogger logs request start at debug and completion at info.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		logger.DebugCtx(ctx, "request started",
			"remote_addr", r.RemoteAddr,
			"headers", redactHeaders(r.Header),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(ctx, "request completed",
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}

// requestMetrics feeds the Prometheus request collectors.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestStarted()
		defer metrics.RequestFinished()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, status, time.Since(start))
	})
}
