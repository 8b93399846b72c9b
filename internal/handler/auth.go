package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler manages login, registration, logout and the optional GitHub
// sign-in.
//
// DEPENDENCY CHAIN:
//   - auth    *service.AuthService   → checks credentials, creates users, issues tokens
//   - github  *auth.GitHubProvider   → OAuth code exchange; nil when not configured
//   - cookies *auth.Cookies          → writes and clears the session cookie
//   - flashes *flash.Store           → one-shot messages after redirects
type AuthHandler struct {
	auth        *service.AuthService
	github      *auth.GitHubProvider
	cookies     *auth.Cookies
	sessionTTL  time.Duration
	minPassword int
	flashes     *flash.Store
	render      *Renderer
	logger      *slog.Logger
}

// AuthHandlerConfig groups the AuthHandler dependencies.
type AuthHandlerConfig struct {
	Auth        *service.AuthService
	GitHub      *auth.GitHubProvider // optional
	Cookies     *auth.Cookies
	SessionTTL  time.Duration
	MinPassword int
	Flashes     *flash.Store
	Render      *Renderer
	Logger      *slog.Logger
}

func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		auth:        cfg.Auth,
		github:      cfg.GitHub,
		cookies:     cfg.Cookies,
		sessionTTL:  cfg.SessionTTL,
		minPassword: cfg.MinPassword,
		flashes:     cfg.Flashes,
		render:      cfg.Render,
		logger:      cfg.Logger,
	}
}

type loginPage struct {
	Email string
	Next  string
	Error string
}

type registerPage struct {
	Name        string
	Email       string
	MinPassword int
	Error       string
}

// redirectIfLoggedIn sends an authenticated visitor home. The login and
// register pages are for anonymous visitors only.
func redirectIfLoggedIn(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := auth.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return true
	}
	return false
}

// HandleLoginForm serves GET /login.
func (h *AuthHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	h.render.Render(w, r, http.StatusOK, pageLogin, loginPage{
		Next: auth.SafeNext(r.URL.Query().Get("next")),
	})
}

// HandleLogin checks the credentials and starts a session.
//
// HTTP: POST /login[?next=/path]
//
// A user with no favorites yet is sent to the preference page; everyone else
// goes back to where RequireAuth stopped them, or home.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, err)
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	next := auth.SafeNext(r.URL.Query().Get("next"))

	result, err := h.auth.Login(r.Context(), email, r.PostForm.Get("senha"))
	if err != nil {
		status, msg, ok := formStatus(err)
		if !ok {
			h.render.Error(w, r, err)
			return
		}
		h.render.Render(w, r, status, pageLogin, loginPage{Email: email, Next: next, Error: msg})
		return
	}

	h.startSession(w, r, result, next)
}

// startSession sets the cookie and picks the post-login destination.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, result *service.AuthResult, next string) {
	h.cookies.SetSession(w, result.Token, h.sessionTTL)

	if result.NeedsPreferences {
		h.flashes.Add(w, flash.Success, "Login com sucesso! Personalize seus gostos.")
		http.Redirect(w, r, "/escolher-gostos", http.StatusSeeOther)
		return
	}
	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// HandleRegisterForm serves GET /register.
func (h *AuthHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	h.render.Render(w, r, http.StatusOK, pageRegister, registerPage{MinPassword: h.minPassword})
}

// HandleRegister creates the account, signs the user in and sends them to
// pick their favorites.
//
// HTTP: POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, err)
		return
	}

	in := service.RegisterInput{
		Name:     strings.TrimSpace(r.PostForm.Get("nome")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("senha"),
	}

	result, err := h.auth.Register(r.Context(), in)
	if err != nil {
		status, msg, ok := formStatus(err)
		if !ok {
			h.render.Error(w, r, err)
			return
		}
		h.render.Render(w, r, status, pageRegister, registerPage{
			Name:        in.Name,
			Email:       in.Email,
			MinPassword: h.minPassword,
			Error:       msg,
		})
		return
	}

	h.cookies.SetSession(w, result.Token, h.sessionTTL)
	h.flashes.Add(w, flash.Success, "Conta criada com sucesso! Agora, personalize seus gostos.")
	http.Redirect(w, r, "/escolher-gostos", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: GET /logout
//
// Sessions are stateless JWTs, so "logout" only removes the cookie; the
// token itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	h.flashes.Add(w, flash.Info, "Você saiu da sua conta.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleGitHubLogin redirects to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state is stored in a short-lived cookie and checked on callback,
// which proves the callback belongs to a login this server started.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.render.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter against the cookie
//  2. Exchange the code for the GitHub profile
//  3. Find or create the local user by email
//  4. Start a session exactly like a password login
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.render.NotFound(w, r)
		return
	}

	// --- Step 1: state check ---
	query := r.URL.Query()
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		h.githubFailed(w, r)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		h.githubFailed(w, r)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.githubFailed(w, r)
		return
	}

	// --- Step 2: exchange ---
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		h.githubFailed(w, r)
		return
	}

	// --- Step 3: local account ---
	result, err := h.auth.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		h.githubFailed(w, r)
		return
	}

	// --- Step 4: session ---
	h.startSession(w, r, result, "")
}

func (h *AuthHandler) githubFailed(w http.ResponseWriter, r *http.Request) {
	h.flashes.Add(w, flash.Danger, "Não foi possível entrar com o GitHub.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
