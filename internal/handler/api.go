package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/musicrec/internal/service"
)

// APIHandler serves the JSON endpoints used by page scripts.
type APIHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewAPIHandler(catalog *service.CatalogService, logger *slog.Logger) *APIHandler {
	return &APIHandler{catalog: catalog, logger: logger}
}

// HandleSearchArtists returns a JSON array of at most 10 artist names that
// contain q, ignoring case.
//
// HTTP: GET /api/artists/search?q=...
// Response: 200 ["Anitta", "Anavitória"]; a blank q gives [].
func (h *APIHandler) HandleSearchArtists(w http.ResponseWriter, r *http.Request) {
	names, err := h.catalog.SearchArtists(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}
