package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/service"
)

// PreferenceHandler serves the pages where a logged-in user manages their
// favorites and account. Every route here sits behind auth.RequireAuth.
type PreferenceHandler struct {
	prefs   *service.PreferenceService
	cookies *auth.Cookies
	flashes *flash.Store
	render  *Renderer
	logger  *slog.Logger
}

func NewPreferenceHandler(
	prefs *service.PreferenceService,
	cookies *auth.Cookies,
	flashes *flash.Store,
	render *Renderer,
	logger *slog.Logger,
) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:   prefs,
		cookies: cookies,
		flashes: flashes,
		render:  render,
		logger:  logger,
	}
}

// preferencesPage feeds both escolher_gostos and perfil; the shared form
// posts to Action.
type preferencesPage struct {
	Action string
	Form   *service.PreferenceForm
	Error  string
}

// currentUser is only called on RequireAuth routes, where the user is
// always present.
func currentUser(r *http.Request) *model.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

// HandleChooseForm serves GET /escolher-gostos.
func (h *PreferenceHandler) HandleChooseForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, pagePreferences, "/escolher-gostos", "")
}

func (h *PreferenceHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, page, action, errMsg string) {
	form, err := h.prefs.Form(r.Context(), currentUser(r).ID)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, status, page, preferencesPage{Action: action, Form: form, Error: errMsg})
}

// saveFromForm reads "generos" (genre ids) and "artistas" (names, possibly
// comma-separated) and replaces the user's favorites with them.
func (h *PreferenceHandler) saveFromForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	genreIDs, err := formIDs(r, "generos", "Gênero inválido.")
	if err != nil {
		return err
	}
	_, err = h.prefs.SetPreferences(r.Context(), currentUser(r).ID, genreIDs, r.PostForm["artistas"])
	return err
}

// HandleChoose replaces the favorites and sends the user to their
// recommendations.
//
// HTTP: POST /escolher-gostos
func (h *PreferenceHandler) HandleChoose(w http.ResponseWriter, r *http.Request) {
	if err := h.saveFromForm(r); err != nil {
		h.formError(w, r, pagePreferences, "/escolher-gostos", err)
		return
	}
	h.flashes.Add(w, flash.Success, "Preferências salvas! Aproveite suas recomendações.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PreferenceHandler) formError(w http.ResponseWriter, r *http.Request, page, action string, err error) {
	status, msg, ok := formStatus(err)
	if !ok {
		h.render.Error(w, r, err)
		return
	}
	h.renderForm(w, r, status, page, action, msg)
}

// HandleProfile serves GET /perfil.
func (h *PreferenceHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, pageProfile, "/perfil", "")
}

// HandleUpdateProfile handles both forms on the profile page. The name form
// carries acao=nome; the preference form has no acao field.
//
// HTTP: POST /perfil
func (h *PreferenceHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, err)
		return
	}

	if r.PostForm.Get("acao") == "nome" {
		if err := h.prefs.UpdateProfile(r.Context(), currentUser(r).ID, r.PostForm.Get("nome")); err != nil {
			h.formError(w, r, pageProfile, "/perfil", err)
			return
		}
		h.flashes.Add(w, flash.Success, "Perfil atualizado.")
		http.Redirect(w, r, "/perfil", http.StatusSeeOther)
		return
	}

	if err := h.saveFromForm(r); err != nil {
		h.formError(w, r, pageProfile, "/perfil", err)
		return
	}
	h.flashes.Add(w, flash.Success, "Preferências salvas! Aproveite suas recomendações.")
	http.Redirect(w, r, "/perfil", http.StatusSeeOther)
}

// HandleDeleteAccount removes the user and their favorites, then ends the
// session.
//
// HTTP: POST /perfil/excluir
func (h *PreferenceHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := h.prefs.DeleteAccount(r.Context(), user.ID); err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.cookies.ClearSession(w)
	h.flashes.Add(w, flash.Info, "Sua conta foi excluída.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
