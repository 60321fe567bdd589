package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNoOp(t *testing.T) {
	active.Store(nil)

	assert.False(t, IsEnabled())
	assert.Nil(t, Registry())

	// Must not panic
	RecordReload(OutcomeSuccess, time.Millisecond)
	SetTemplateGeneration(3)
	RecordRequest(http.MethodGet, http.StatusOK, time.Millisecond)
	RequestStarted()
	RequestFinished()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitAndScrape(t *testing.T) {
	Init()
	t.Cleanup(func() { active.Store(nil) })

	require.True(t, IsEnabled())
	require.NotNil(t, Registry())

	RecordReload(OutcomeSuccess, 2*time.Millisecond)
	RecordReload(OutcomeError, time.Millisecond)
	SetTemplateGeneration(7)
	RecordRequest(http.MethodGet, http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `kiln_template_reloads_total{outcome="success"} 1`)
	assert.Contains(t, body, `kiln_template_reloads_total{outcome="error"} 1`)
	assert.Contains(t, body, "kiln_template_generation 7")
	assert.Contains(t, body, `kiln_http_requests_total{method="GET",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestInFlightGauge(t *testing.T) {
	Init()
	t.Cleanup(func() { active.Store(nil) })

	RequestStarted()
	RequestStarted()
	RequestFinished()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "kiln_http_requests_in_flight 1")
}
