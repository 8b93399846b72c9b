package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/service"
)

// PageHandler serves the public pages.
type PageHandler struct {
	recommendations *service.RecommendationService
	render          *Renderer
	logger          *slog.Logger
}

func NewPageHandler(recommendations *service.RecommendationService, render *Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{recommendations: recommendations, render: render, logger: logger}
}

type homePage struct {
	Tracks []model.Track
}

// HandleHome shows recommendations to a logged-in user and the landing page
// to everyone else.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.render.Render(w, r, http.StatusOK, pageHome, homePage{})
		return
	}

	tracks, err := h.recommendations.Recommend(r.Context(), user.ID)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageHome, homePage{Tracks: tracks})
}

// HandleAbout serves GET /sobre.
func (h *PageHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageAbout, nil)
}

// HandleNotFound is the router's fallback.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.render.NotFound(w, r)
}
