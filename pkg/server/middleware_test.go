package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilnproject/kiln/internal/telemetry"
)

func TestHTTPFlavor(t *testing.T) {
	tests := []struct {
		proto string
		want  string
	}{
		{"HTTP/0.9", "0.9"},
		{"HTTP/1.0", "1.0"},
		{"HTTP/1.1", "1.1"},
		{"HTTP/2.0", "2.0"},
		{"HTTP/3.0", "3.0"},
		{"SPDY/3.1", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, httpFlavor(tt.proto), "proto %q", tt.proto)
	}
}

func TestSpanStatus(t *testing.T) {
	tests := []struct {
		status int
		want   codes.Code
	}{
		{200, codes.Ok},
		{204, codes.Ok},
		{301, codes.Ok},
		{399, codes.Ok},
		{400, codes.Error},
		{404, codes.Error},
		{500, codes.Error},
		{599, codes.Error},
		{101, codes.Unset},
		{199, codes.Unset},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, spanStatus(tt.status), "status %d", tt.status)
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "session=abc")
	h.Set("User-Agent", "curl/8.0")

	redacted := redactHeaders(h)

	assert.Equal(t, []string{"[redacted]"}, redacted["Authorization"])
	assert.Equal(t, []string{"[redacted]"}, redacted["Cookie"])
	assert.Equal(t, []string{"curl/8.0"}, redacted["User-Agent"])

	// Original must be untouched
	assert.Equal(t, "Bearer secret", h.Get("Authorization"))
}

// newRecordingTracing returns a Tracing middleware backed by an in-memory
// span recorder.
func newRecordingTracing(t *testing.T) (*Tracing, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return NewTracing(provider.Tracer("test")), recorder
}

func serveTraced(t *testing.T, tracing *Tracing, req *http.Request, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	tracing.Handler(handler).ServeHTTP(rec, req)
	return rec
}

func okHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingRecordsRequestAttributes(t *testing.T) {
	tracing, recorder := newRecordingTracing(t)

	req := httptest.NewRequest(http.MethodGet, "/pages/about?tab=1", nil)
	req.Header.Set("User-Agent", "kiln-test/1.0")
	serveTraced(t, tracing, req, okHandler(http.StatusOK))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, telemetry.SpanRequest, span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	v, ok := spanAttr(span, telemetry.AttrHTTPMethod)
	require.True(t, ok)
	assert.Equal(t, "GET", v.AsString())

	v, ok = spanAttr(span, telemetry.AttrHTTPTarget)
	require.True(t, ok)
	assert.Equal(t, "/pages/about?tab=1", v.AsString())

	v, ok = spanAttr(span, telemetry.AttrHTTPFlavor)
	require.True(t, ok)
	assert.Equal(t, "1.1", v.AsString())

	v, ok = spanAttr(span, telemetry.AttrHTTPUserAgent)
	require.True(t, ok)
	assert.Equal(t, "kiln-test/1.0", v.AsString())

	v, ok = spanAttr(span, telemetry.AttrHTTPStatusCode)
	require.True(t, ok)
	assert.Equal(t, int64(200), v.AsInt64())
}

func TestTracingStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   codes.Code
	}{
		{http.StatusOK, codes.Ok},
		{http.StatusMovedPermanently, codes.Ok},
		{http.StatusNotFound, codes.Error},
		{http.StatusInternalServerError, codes.Error},
	}

	for _, tt := range tests {
		tracing, recorder := newRecordingTracing(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		serveTraced(t, tracing, req, okHandler(tt.status))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, tt.want, spans[0].Status().Code, "status %d", tt.status)

		v, ok := spanAttr(spans[0], telemetry.AttrHTTPStatusCode)
		require.True(t, ok)
		assert.Equal(t, int64(tt.status), v.AsInt64())
	}
}

func TestTracingAdoptsRemoteParent(t *testing.T) {
	tracing, recorder := newRecordingTracing(t)

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := trace.ContextWithSpanContext(req.Context(), parent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	serveTraced(t, tracing, req, okHandler(http.StatusOK))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, parent.TraceID(), span.SpanContext().TraceID())
	assert.Equal(t, parent.SpanID(), span.Parent().SpanID())
	assert.True(t, span.Parent().IsRemote())
}

func TestTracingStartsFreshRootWithoutParent(t *testing.T) {
	tracing, recorder := newRecordingTracing(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	serveTraced(t, tracing, req, okHandler(http.StatusOK))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Parent().IsValid())
}

func TestTracingIgnoresMalformedTraceparent(t *testing.T) {
	tracing, recorder := newRecordingTracing(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-garbage-bad-00")
	serveTraced(t, tracing, req, okHandler(http.StatusOK))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Parent().IsValid(), "malformed context must start a fresh root")
}
