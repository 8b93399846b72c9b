package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/service"
)

// AdminHandler serves the catalog dashboard and the create/edit/delete
// routes for genres, artists and tracks.
//
// It does no authorization itself; the server mounts it behind
// auth.RequireAuth and auth.RequireAdmin.
type AdminHandler struct {
	catalog *service.CatalogService
	flashes *flash.Store
	render  *Renderer
	logger  *slog.Logger
}

func NewAdminHandler(catalog *service.CatalogService, flashes *flash.Store, render *Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{catalog: catalog, flashes: flashes, render: render, logger: logger}
}

// Routes registers the admin routes on r, which the server mounts at /admin.
//
//	GET  /                        → dashboard
//	POST /{generos,artistas,musicas}          → create
//	GET  /{entity}/edit/{id}, POST same path  → edit form / save
//	POST /{entity}/delete/{id}                → delete
//	GET  /{entity}/delete/{id}                → delete, same-origin only
//
// The English names (genres, artists, tracks) are registered as aliases of
// the same handlers. The dashboard deletes through POST forms; the GET form
// is kept for old links and refuses navigations started on another site.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleDashboard)

	for _, e := range []namedEntity{h.genres(), h.artists()} {
		for _, prefix := range e.paths {
			r.Post("/"+prefix, h.createNamed(e))
			r.Get("/"+prefix+"/edit/{id}", h.editNamedForm(e))
			r.Post("/"+prefix+"/edit/{id}", h.editNamed(e))
			r.Post("/"+prefix+"/delete/{id}", h.deleteNamed(e))
			r.Get("/"+prefix+"/delete/{id}", h.sameOrigin(h.deleteNamed(e)))
		}
	}

	for _, prefix := range []string{"musicas", "tracks"} {
		r.Post("/"+prefix, h.HandleCreateTrack)
		r.Get("/"+prefix+"/edit/{id}", h.HandleEditTrackForm)
		r.Post("/"+prefix+"/edit/{id}", h.HandleEditTrack)
		r.Post("/"+prefix+"/delete/{id}", h.HandleDeleteTrack)
		r.Get("/"+prefix+"/delete/{id}", h.sameOrigin(h.HandleDeleteTrack))
	}
}

type dashboardPage struct {
	Catalog *model.Catalog
}

// HandleDashboard serves GET /admin.
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalog.Dashboard(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageDashboard, dashboardPage{Catalog: catalog})
}

// backToDashboard reports the outcome of a dashboard mutation. Input and
// conflict errors become a danger flash; anything else takes the normal
// error path.
func (h *AdminHandler) backToDashboard(w http.ResponseWriter, r *http.Request, err error, success string) {
	if err != nil {
		_, msg, ok := formStatus(err)
		if !ok {
			h.render.Error(w, r, err)
			return
		}
		h.flashes.Add(w, flash.Danger, msg)
	} else {
		h.flashes.Add(w, flash.Success, success)
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// sameOrigin rejects a request the browser reports as coming from another
// site. Session cookies are SameSite=Lax, which still sends them on top-level
// GET navigations, so a GET that deletes needs this check. Requests without
// Sec-Fetch-Site or Referer (non-browser clients) pass.
func (h *AdminHandler) sameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if crossSite(r) {
			h.logger.Warn("cross-site admin request refused",
				slog.String("path", r.URL.Path),
				slog.String("referer", r.Referer()),
			)
			h.flashes.Add(w, flash.Danger, "Use o painel para excluir itens.")
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func crossSite(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return false
	case "":
	default:
		return true
	}
	ref := r.Referer()
	if ref == "" {
		return false
	}
	u, err := url.Parse(ref)
	return err != nil || u.Host != r.Host
}

// === GENRES AND ARTISTS ===
// Both are a single name column, so one set of handlers serves them.

type namedEntity struct {
	label   string   // shown on the edit page, e.g. "Gênero"
	paths   []string // URL segments under /admin; the first is canonical
	created string
	updated string
	deleted string

	create func(ctx context.Context, name string) error
	get    func(ctx context.Context, id int64) (string, error)
	update func(ctx context.Context, id int64, name string) error
	remove func(ctx context.Context, id int64) error
}

func (h *AdminHandler) genres() namedEntity {
	return namedEntity{
		label:   "Gênero",
		paths:   []string{"generos", "genres"},
		created: "Gênero criado.",
		updated: "Gênero atualizado.",
		deleted: "Gênero excluído.",
		create: func(ctx context.Context, name string) error {
			_, err := h.catalog.CreateGenre(ctx, name)
			return err
		},
		get: func(ctx context.Context, id int64) (string, error) {
			g, err := h.catalog.Genre(ctx, id)
			if err != nil {
				return "", err
			}
			return g.Name, nil
		},
		update: func(ctx context.Context, id int64, name string) error {
			_, err := h.catalog.UpdateGenre(ctx, id, name)
			return err
		},
		remove: h.catalog.DeleteGenre,
	}
}

func (h *AdminHandler) artists() namedEntity {
	return namedEntity{
		label:   "Artista",
		paths:   []string{"artistas", "artists"},
		created: "Artista criado.",
		updated: "Artista atualizado.",
		deleted: "Artista excluído.",
		create: func(ctx context.Context, name string) error {
			_, err := h.catalog.CreateArtist(ctx, name)
			return err
		},
		get: func(ctx context.Context, id int64) (string, error) {
			a, err := h.catalog.Artist(ctx, id)
			if err != nil {
				return "", err
			}
			return a.Name, nil
		},
		update: func(ctx context.Context, id int64, name string) error {
			_, err := h.catalog.UpdateArtist(ctx, id, name)
			return err
		},
		remove: h.catalog.DeleteArtist,
	}
}

type editPage struct {
	Kind   string
	Action string
	Name   string
	Error  string
}

func (e namedEntity) editAction(id int64) string {
	return "/admin/" + e.paths[0] + "/edit/" + strconv.FormatInt(id, 10)
}

func (h *AdminHandler) createNamed(e namedEntity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			h.render.Error(w, r, err)
			return
		}
		err := e.create(r.Context(), r.PostForm.Get("nome"))
		h.backToDashboard(w, r, err, e.created)
	}
}

func (h *AdminHandler) editNamedForm(e namedEntity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.render.NotFound(w, r)
			return
		}
		name, err := e.get(r.Context(), id)
		if err != nil {
			h.render.Error(w, r, err)
			return
		}
		h.render.Render(w, r, http.StatusOK, pageEdit, editPage{
			Kind:   e.label,
			Action: e.editAction(id),
			Name:   name,
		})
	}
}

func (h *AdminHandler) editNamed(e namedEntity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.render.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			h.render.Error(w, r, err)
			return
		}

		name := r.PostForm.Get("nome")
		if err := e.update(r.Context(), id, name); err != nil {
			status, msg, ok := formStatus(err)
			if !ok {
				h.render.Error(w, r, err)
				return
			}
			h.render.Render(w, r, status, pageEdit, editPage{
				Kind:   e.label,
				Action: e.editAction(id),
				Name:   strings.TrimSpace(name),
				Error:  msg,
			})
			return
		}

		h.flashes.Add(w, flash.Success, e.updated)
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}
}

func (h *AdminHandler) deleteNamed(e namedEntity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.render.NotFound(w, r)
			return
		}
		err = e.remove(r.Context(), id)
		if errors.Is(err, apperror.ErrNotFound) {
			h.render.NotFound(w, r)
			return
		}
		h.backToDashboard(w, r, err, e.deleted)
	}
}

// === TRACKS ===

type trackPage struct {
	Track   *model.Track
	Genres  []model.Genre
	Artists []model.Artist
	Error   string
}

// trackInput reads titulo, artista_id and every genero_id value. A missing
// or malformed artista_id becomes 0, which the service rejects with a
// field message.
func trackInput(r *http.Request) (service.TrackInput, error) {
	if err := r.ParseForm(); err != nil {
		return service.TrackInput{}, err
	}
	artistID, _ := strconv.ParseInt(r.PostForm.Get("artista_id"), 10, 64)
	genreIDs, err := formIDs(r, "genero_id", "Gênero inválido.")
	if err != nil {
		return service.TrackInput{}, err
	}
	return service.TrackInput{
		Title:    r.PostForm.Get("titulo"),
		ArtistID: artistID,
		GenreIDs: genreIDs,
	}, nil
}

// HandleCreateTrack serves POST /admin/musicas.
func (h *AdminHandler) HandleCreateTrack(w http.ResponseWriter, r *http.Request) {
	in, err := trackInput(r)
	if err == nil {
		_, err = h.catalog.CreateTrack(r.Context(), in)
	}
	h.backToDashboard(w, r, err, "Música criada.")
}

// HandleEditTrackForm serves GET /admin/musicas/edit/{id}.
func (h *AdminHandler) HandleEditTrackForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return
	}
	track, err := h.catalog.Track(r.Context(), id)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.renderTrack(w, r, http.StatusOK, track, "")
}

func (h *AdminHandler) renderTrack(w http.ResponseWriter, r *http.Request, status int, track *model.Track, errMsg string) {
	catalog, err := h.catalog.Dashboard(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, status, pageEditTrack, trackPage{
		Track:   track,
		Genres:  catalog.Genres,
		Artists: catalog.Artists,
		Error:   errMsg,
	})
}

// HandleEditTrack serves POST /admin/musicas/edit/{id}. The whole genre set
// is replaced by the submitted one.
func (h *AdminHandler) HandleEditTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return
	}

	in, err := trackInput(r)
	if err == nil {
		_, err = h.catalog.UpdateTrack(r.Context(), id, in)
	}
	if err != nil {
		status, msg, ok := formStatus(err)
		if !ok {
			h.render.Error(w, r, err)
			return
		}
		// redisplay what was submitted
		h.renderTrack(w, r, status, &model.Track{
			ID:       id,
			Title:    strings.TrimSpace(in.Title),
			ArtistID: in.ArtistID,
			GenreIDs: in.GenreIDs,
		}, msg)
		return
	}

	h.flashes.Add(w, flash.Success, "Música atualizada.")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleDeleteTrack serves /admin/musicas/delete/{id}.
func (h *AdminHandler) HandleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return
	}
	err = h.catalog.DeleteTrack(r.Context(), id)
	if errors.Is(err, apperror.ErrNotFound) {
		h.render.NotFound(w, r)
		return
	}
	h.backToDashboard(w, r, err, "Música excluída.")
}
