package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/internal/telemetry"
	"github.com/kilnproject/kiln/pkg/templates"
)

// indexTemplate is the template served at the site root.
const indexTemplate = "index.html"

// PageData is the data every page template is executed with.
type PageData struct {
	Name       string
	Generation uint64
	Path       string
	RenderedAt time.Time
}

// PagesHandler renders pages from the live template snapshot.
//
// Every request takes its own snapshot reference, so a reload mid-request
// never changes the templates a response is built from.
type PagesHandler struct {
	provider *templates.Provider
}

func NewPagesHandler(provider *templates.Provider) *PagesHandler {
	return &PagesHandler{provider: provider}
}

// Index handles GET / by rendering the index template.
func (h *PagesHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, h.provider.Current(), indexTemplate)
}

// Page handles GET /pages/{name}.
//
// The name is looked up verbatim, then with the default extensions
// appended, so /pages/about serves about.html.
func (h *PagesHandler) Page(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "/\\") {
		WriteJSON(w, http.StatusNotFound, ErrorResponse("page not found"))
		return
	}

	snapshot := h.provider.Current()
	if !snapshot.Has(name) {
		resolved := ""
		for _, ext := range templates.DefaultExtensions {
			if snapshot.Has(name + ext) {
				resolved = name + ext
				break
			}
		}
		if resolved == "" {
			WriteJSON(w, http.StatusNotFound, ErrorResponse("page not found"))
			return
		}
		name = resolved
	}

	h.render(w, r, snapshot, name)
}

// render executes name from the given snapshot. The caller resolves the
// name against the same snapshot, so a reload mid-request cannot split
// resolution and rendering across generations.
func (h *PagesHandler) render(w http.ResponseWriter, r *http.Request, snapshot *templates.Snapshot, name string) {
	if !snapshot.Has(name) {
		WriteJSON(w, http.StatusNotFound, ErrorResponse("page not found"))
		return
	}

	ctx, span := telemetry.StartRenderSpan(r.Context(), name, snapshot.Generation())
	defer span.End()

	data := PageData{
		Name:       name,
		Generation: snapshot.Generation(),
		Path:       r.URL.Path,
		RenderedAt: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := snapshot.Render(w, name, data); err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "page render failed",
			"template", name,
			logger.KeyGeneration, snapshot.Generation(),
			logger.KeyError, err,
		)
		// Render buffers before writing, so the response is still clean
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse("failed to render page"))
		return
	}
}
