package handlers

import (
	"net/http"
	"time"

	"github.com/kilnproject/kiln/pkg/templates"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is a template snapshot loaded and serving?
//   - Template health: Details of the live snapshot
type HealthHandler struct {
	provider *templates.Provider
	started  time.Time
	version  string
}

// NewHealthHandler creates a new health handler.
//
// The provider parameter may be nil, in which case readiness and template
// health checks report unhealthy.
func NewHealthHandler(provider *templates.Provider, version string) *HealthHandler {
	return &HealthHandler{
		provider: provider,
		started:  time.Now().UTC(),
		version:  version,
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthyResponse(map[string]string{
		"service": "kiln",
		"version": h.version,
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK once a template snapshot is loaded and serving.
// Returns 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteJSON(w, http.StatusServiceUnavailable, UnhealthyResponse("template provider not initialized"))
		return
	}

	snapshot := h.provider.Current()
	if snapshot == nil {
		WriteJSON(w, http.StatusServiceUnavailable, UnhealthyResponse("no template snapshot loaded"))
		return
	}

	WriteJSON(w, http.StatusOK, HealthyResponse(map[string]interface{}{
		"generation": snapshot.Generation(),
		"templates":  len(snapshot.Names()),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	}))
}

// TemplatesResponse describes the live template snapshot.
type TemplatesResponse struct {
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
	Roots      []string  `json:"roots"`
	Templates  []string  `json:"templates"`
}

// Templates handles GET /health/templates - detailed snapshot health.
func (h *HealthHandler) Templates(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteJSON(w, http.StatusServiceUnavailable, UnhealthyResponse("template provider not initialized"))
		return
	}

	snapshot := h.provider.Current()
	if snapshot == nil {
		WriteJSON(w, http.StatusServiceUnavailable, UnhealthyResponse("no template snapshot loaded"))
		return
	}

	WriteJSON(w, http.StatusOK, HealthyResponse(TemplatesResponse{
		Generation: snapshot.Generation(),
		LoadedAt:   snapshot.LoadedAt(),
		Roots:      h.provider.WatchRoots(),
		Templates:  snapshot.Names(),
	}))
}
