package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository/sqlite"
	"github.com/sakif/musicrec/internal/service"
	"github.com/sakif/musicrec/web"
)

// testEnv wires the real services over an in-memory database, the same way
// the server does, minus rate limiting and metrics.
type testEnv struct {
	db      *sqlite.DB
	tokens  *auth.TokenService
	authSvc *service.AuthService
	catalog *service.CatalogService
	prefs   *service.PreferenceService
	flashes *flash.Store
	router  chi.Router
}

func newTestEnv(t *testing.T, github *auth.GitHubProvider) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost),
		service.AuthOptions{AdminEmail: "admin@gmail.com", MinPasswordLength: 6}, logger)
	catalog := service.NewCatalogService(db, logger)
	prefs := service.NewPreferenceService(db, logger)
	recs := service.NewRecommendationService(db.Tracks(), logger)

	flashes := flash.NewStore(false)
	cookies := auth.NewCookies(false)
	render, err := NewRenderer(web.Templates(), flashes, github != nil, logger)
	require.NoError(t, err)

	pagesH := NewPageHandler(recs, render, logger)
	authH := NewAuthHandler(AuthHandlerConfig{
		Auth: authSvc, GitHub: github, Cookies: cookies, SessionTTL: time.Hour,
		MinPassword: 6, Flashes: flashes, Render: render, Logger: logger,
	})
	prefsH := NewPreferenceHandler(prefs, cookies, flashes, render, logger)
	adminH := NewAdminHandler(catalog, flashes, render, logger)
	apiH := NewAPIHandler(catalog, logger)

	r := chi.NewRouter()
	r.Use(auth.LoadUser(tokens, authSvc, cookies, logger))
	r.NotFound(pagesH.HandleNotFound)
	r.Get("/", pagesH.HandleHome)
	r.Get("/sobre", pagesH.HandleAbout)
	r.Get("/login", authH.HandleLoginForm)
	r.Post("/login", authH.HandleLogin)
	r.Get("/register", authH.HandleRegisterForm)
	r.Post("/register", authH.HandleRegister)
	r.Get("/auth/github/login", authH.HandleGitHubLogin)
	r.Get("/auth/github/callback", authH.HandleGitHubCallback)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/logout", authH.HandleLogout)
		r.Get("/escolher-gostos", prefsH.HandleChooseForm)
		r.Post("/escolher-gostos", prefsH.HandleChoose)
		r.Get("/perfil", prefsH.HandleProfile)
		r.Post("/perfil", prefsH.HandleUpdateProfile)
		r.Post("/perfil/excluir", prefsH.HandleDeleteAccount)
		r.Get("/api/artists/search", apiH.HandleSearchArtists)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(flashes))
			adminH.Routes(r)
		})
	})

	return &testEnv{
		db: db, tokens: tokens, authSvc: authSvc, catalog: catalog,
		prefs: prefs, flashes: flashes, router: r,
	}
}

func (e *testEnv) register(t *testing.T, name, email string) *model.User {
	t.Helper()
	res, err := e.authSvc.Register(context.Background(),
		service.RegisterInput{Name: name, Email: email, Password: "secret123"})
	require.NoError(t, err)
	return res.User
}

// do sends a request as user (nil for anonymous). A non-nil form is sent
// url-encoded.
func (e *testEnv) do(t *testing.T, method, target string, form url.Values, user *model.User) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if user != nil {
		token, err := e.tokens.Generate(user.ID)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// flashesOf decodes the flash cookie a response set.
func (e *testEnv) flashesOf(rec *httptest.ResponseRecorder) []flash.Message {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return e.flashes.Pop(httptest.NewRecorder(), req)
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, location, rec.Header().Get("Location"))
}

// =========================================================================
// Page TESTS
// =========================================================================

func TestHome_AnonymousGetsLanding(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Descubra músicas")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestHome_ShowsRecommendations(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	user := e.register(t, "Ana", "ana@example.com")

	pop, err := e.catalog.CreateGenre(ctx, "Pop")
	require.NoError(t, err)
	rock, err := e.catalog.CreateGenre(ctx, "Rock")
	require.NoError(t, err)
	artist, err := e.catalog.CreateArtist(ctx, "Anitta")
	require.NoError(t, err)
	_, err = e.catalog.CreateTrack(ctx, service.TrackInput{Title: "Envolver", ArtistID: artist.ID, GenreIDs: []int64{pop.ID}})
	require.NoError(t, err)
	_, err = e.catalog.CreateTrack(ctx, service.TrackInput{Title: "Outra", ArtistID: artist.ID, GenreIDs: []int64{rock.ID}})
	require.NoError(t, err)
	_, err = e.prefs.SetPreferences(ctx, user.ID, []int64{pop.ID}, nil)
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/", nil, user)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Envolver")
	assert.NotContains(t, rec.Body.String(), "Outra")
}

func TestHome_NoFavoritesShowsHint(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")

	rec := e.do(t, http.MethodGet, "/", nil, user)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nenhuma recomendação ainda")
}

func TestAboutAndNotFound(t *testing.T) {
	e := newTestEnv(t, nil)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/sobre", nil, nil).Code)

	rec := e.do(t, http.MethodGet, "/nao-existe", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Página não encontrada")
}

// =========================================================================
// Login / Register TESTS
// =========================================================================

func TestLogin_InvalidCredentialsReRender(t *testing.T) {
	e := newTestEnv(t, nil)
	e.register(t, "Ana", "ana@example.com")

	rec := e.do(t, http.MethodPost, "/login", url.Values{"email": {"ana@example.com"}, "senha": {"wrong"}}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login inválido. Verifique e-mail e senha.")
	assert.Contains(t, rec.Body.String(), `value="ana@example.com"`)
	assert.Nil(t, cookieNamed(rec, auth.SessionCookieName))
}

func TestLogin_WithoutFavoritesGoesToPreferences(t *testing.T) {
	e := newTestEnv(t, nil)
	e.register(t, "Ana", "ana@example.com")

	rec := e.do(t, http.MethodPost, "/login", url.Values{"email": {"ANA@example.com"}, "senha": {"secret123"}}, nil)

	assertRedirect(t, rec, "/escolher-gostos")
	session := cookieNamed(rec, auth.SessionCookieName)
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, []flash.Message{{Category: flash.Success, Text: "Login com sucesso! Personalize seus gostos."}},
		e.flashesOf(rec))
}

func TestLogin_RedirectsToNext(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")
	g, err := e.catalog.CreateGenre(context.Background(), "Pop")
	require.NoError(t, err)
	_, err = e.prefs.SetPreferences(context.Background(), user.ID, []int64{g.ID}, nil)
	require.NoError(t, err)

	creds := url.Values{"email": {"ana@example.com"}, "senha": {"secret123"}}

	t.Run("safe next", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/login?next="+url.QueryEscape("/perfil"), creds, nil)
		assertRedirect(t, rec, "/perfil")
	})

	t.Run("external next is ignored", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/login?next="+url.QueryEscape("//evil.example"), creds, nil)
		assertRedirect(t, rec, "/")
	})
}

func TestLogin_LoggedInUserIsSentHome(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")

	assertRedirect(t, e.do(t, http.MethodGet, "/login", nil, user), "/")
	assertRedirect(t, e.do(t, http.MethodGet, "/register", nil, user), "/")
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t, nil)

	t.Run("success", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/register",
			url.Values{"nome": {"Ana"}, "email": {"ana@example.com"}, "senha": {"secret123"}}, nil)

		assertRedirect(t, rec, "/escolher-gostos")
		assert.NotNil(t, cookieNamed(rec, auth.SessionCookieName))
		msgs := e.flashesOf(rec)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Conta criada com sucesso! Agora, personalize seus gostos.", msgs[0].Text)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/register",
			url.Values{"nome": {"Outra"}, "email": {"Ana@Example.com"}, "senha": {"secret123"}}, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "Este e-mail já está cadastrado.")
	})

	t.Run("short password", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/register",
			url.Values{"nome": {"Bia"}, "email": {"bia@example.com"}, "senha": {"123"}}, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), `value="Bia"`)
	})
}

func TestLogout_ClearsSession(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")

	rec := e.do(t, http.MethodGet, "/logout", nil, user)

	assertRedirect(t, rec, "/")
	session := cookieNamed(rec, auth.SessionCookieName)
	require.NotNil(t, session)
	assert.Less(t, session.MaxAge, 0)
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, path := range []string{"/escolher-gostos", "/perfil", "/admin", "/api/artists/search?q=a"} {
		rec := e.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?next="), path)
	}
}

// =========================================================================
// GitHub TESTS
// =========================================================================

func TestGitHubLogin_DisabledIsNotFound(t *testing.T) {
	e := newTestEnv(t, nil)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/auth/github/login", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/auth/github/callback", nil, nil).Code)
}

func TestGitHubLogin_SetsStateAndRedirects(t *testing.T) {
	e := newTestEnv(t, auth.NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback"))

	rec := e.do(t, http.MethodGet, "/auth/github/login", nil, nil)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	state := cookieNamed(rec, oauthStateCookie)
	require.NotNil(t, state)
	assert.Contains(t, rec.Header().Get("Location"), "state="+state.Value)
}

func TestGitHubCallback_StateMismatch(t *testing.T) {
	e := newTestEnv(t, auth.NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback"))

	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?state=other&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "expected"})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assertRedirect(t, rec, "/login")
	assert.Nil(t, cookieNamed(rec, auth.SessionCookieName))
}

// =========================================================================
// Preference TESTS
// =========================================================================

func TestChoosePreferences(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	user := e.register(t, "Ana", "ana@example.com")
	pop, err := e.catalog.CreateGenre(ctx, "Pop")
	require.NoError(t, err)
	_, err = e.catalog.CreateArtist(ctx, "Anitta")
	require.NoError(t, err)

	t.Run("form lists the catalog", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/escolher-gostos", nil, user)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Pop")
		assert.Contains(t, rec.Body.String(), "Anitta")
	})

	t.Run("save", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/escolher-gostos", url.Values{
			"generos":  {itoa(pop.ID)},
			"artistas": {"anitta, Novo Artista"},
		}, user)

		assertRedirect(t, rec, "/")
		msgs := e.flashesOf(rec)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Preferências salvas! Aproveite suas recomendações.", msgs[0].Text)

		prefs, err := e.prefs.Preferences(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{pop.ID}, prefs.GenreIDs)
		assert.ElementsMatch(t, []string{"Anitta", "Novo Artista"}, prefs.ArtistNames())
	})

	t.Run("malformed genre id", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/escolher-gostos", url.Values{"generos": {"abc"}}, user)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown genre keeps old set", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/escolher-gostos", url.Values{"generos": {"999"}}, user)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		prefs, err := e.prefs.Preferences(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{pop.ID}, prefs.GenreIDs)
	})
}

func TestProfile(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")

	t.Run("shows profile", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/perfil", nil, user)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ana@example.com")
	})

	t.Run("rename", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/perfil", url.Values{"acao": {"nome"}, "nome": {"Ana Maria"}}, user)
		assertRedirect(t, rec, "/perfil")

		got, err := e.authSvc.GetUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", got.Name)
	})

	t.Run("blank name", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/perfil", url.Values{"acao": {"nome"}, "nome": {"  "}}, user)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("delete account", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/perfil/excluir", nil, user)
		assertRedirect(t, rec, "/")

		_, err := e.authSvc.GetUser(context.Background(), user.ID)
		assert.Error(t, err)

		// the old cookie no longer resolves to a user
		rec = e.do(t, http.MethodGet, "/perfil", nil, user)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})
}

// =========================================================================
// Admin TESTS
// =========================================================================

func TestAdmin_NonAdminIsDenied(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")

	rec := e.do(t, http.MethodPost, "/admin/generos", url.Values{"nome": {"Pop"}}, user)

	assertRedirect(t, rec, "/")
	msgs := e.flashesOf(rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, flash.Danger, msgs[0].Category)

	catalog, err := e.catalog.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, catalog.Genres)
}

func TestAdmin_GenreLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := e.register(t, "Admin", "admin@gmail.com")
	require.True(t, admin.IsAdmin)
	ctx := context.Background()

	rec := e.do(t, http.MethodPost, "/admin/generos", url.Values{"nome": {"Pop"}}, admin)
	assertRedirect(t, rec, "/admin")
	assert.Equal(t, flash.Success, e.flashesOf(rec)[0].Category)

	// English alias, duplicate name
	rec = e.do(t, http.MethodPost, "/admin/genres", url.Values{"nome": {"pop"}}, admin)
	assertRedirect(t, rec, "/admin")
	assert.Equal(t, flash.Danger, e.flashesOf(rec)[0].Category)

	catalog, err := e.catalog.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, catalog.Genres, 1)
	id := catalog.Genres[0].ID
	path := "/admin/generos/edit/" + itoa(id)

	rec = e.do(t, http.MethodGet, path, nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Pop"`)

	rec = e.do(t, http.MethodPost, path, url.Values{"nome": {""}}, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, path, url.Values{"nome": {"Pop Rock"}}, admin)
	assertRedirect(t, rec, "/admin")
	g, err := e.catalog.Genre(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Pop Rock", g.Name)

	rec = e.do(t, http.MethodGet, "/admin/generos/delete/"+itoa(id), nil, admin)
	assertRedirect(t, rec, "/admin")
	_, err = e.catalog.Genre(ctx, id)
	assert.Error(t, err)
}

func TestAdmin_UnknownIDsAreNotFound(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := e.register(t, "Admin", "admin@gmail.com")

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/admin/generos/edit/999"},
		{http.MethodPost, "/admin/generos/edit/999"},
		{http.MethodGet, "/admin/artistas/edit/999"},
		{http.MethodGet, "/admin/artists/delete/999"},
		{http.MethodGet, "/admin/musicas/edit/999"},
		{http.MethodPost, "/admin/musicas/edit/999"},
		{http.MethodGet, "/admin/tracks/delete/999"},
		{http.MethodGet, "/admin/musicas/edit/abc"},
	} {
		form := url.Values{"nome": {"X"}, "titulo": {"X"}, "artista_id": {"1"}}
		if tc.method == http.MethodGet {
			form = nil
		}
		rec := e.do(t, tc.method, tc.path, form, admin)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.path)
	}
}

func TestAdmin_TracksAndRestrictedDelete(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := e.register(t, "Admin", "admin@gmail.com")
	ctx := context.Background()

	pop, err := e.catalog.CreateGenre(ctx, "Pop")
	require.NoError(t, err)
	rock, err := e.catalog.CreateGenre(ctx, "Rock")
	require.NoError(t, err)
	artist, err := e.catalog.CreateArtist(ctx, "Anitta")
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/admin/musicas", url.Values{
		"titulo": {"Envolver"}, "artista_id": {itoa(artist.ID)}, "genero_id": {itoa(pop.ID)},
	}, admin)
	assertRedirect(t, rec, "/admin")
	assert.Equal(t, flash.Success, e.flashesOf(rec)[0].Category)

	rec = e.do(t, http.MethodPost, "/admin/musicas", url.Values{"titulo": {"Sem artista"}}, admin)
	assertRedirect(t, rec, "/admin")
	assert.Equal(t, flash.Danger, e.flashesOf(rec)[0].Category)

	catalog, err := e.catalog.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, catalog.Tracks, 1)
	track := catalog.Tracks[0]

	rec = e.do(t, http.MethodGet, "/admin/musicas/edit/"+itoa(track.ID), nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Envolver")

	rec = e.do(t, http.MethodPost, "/admin/tracks/edit/"+itoa(track.ID), url.Values{
		"titulo": {"Envolver (ao vivo)"}, "artista_id": {itoa(artist.ID)}, "genero_id": {itoa(rock.ID)},
	}, admin)
	assertRedirect(t, rec, "/admin")
	updated, err := e.catalog.Track(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, "Envolver (ao vivo)", updated.Title)
	assert.Equal(t, []int64{rock.ID}, updated.GenreIDs)

	// artist still owns the track
	rec = e.do(t, http.MethodGet, "/admin/artistas/delete/"+itoa(artist.ID), nil, admin)
	assertRedirect(t, rec, "/admin")
	assert.Equal(t, flash.Danger, e.flashesOf(rec)[0].Category)
	_, err = e.catalog.Artist(ctx, artist.ID)
	assert.NoError(t, err)

	rec = e.do(t, http.MethodPost, "/admin/musicas/delete/"+itoa(track.ID), nil, admin)
	assertRedirect(t, rec, "/admin")
	rec = e.do(t, http.MethodPost, "/admin/artistas/delete/"+itoa(artist.ID), nil, admin)
	assertRedirect(t, rec, "/admin")
	assert.Equal(t, flash.Success, e.flashesOf(rec)[0].Category)
}

func TestAdmin_GETDeleteRefusesCrossSite(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := e.register(t, "Admin", "admin@gmail.com")
	ctx := context.Background()
	token, err := e.tokens.Generate(admin.ID)
	require.NoError(t, err)

	deleteGET := func(path string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	for name, headers := range map[string]map[string]string{
		"fetch metadata":  {"Sec-Fetch-Site": "cross-site"},
		"sibling site":    {"Sec-Fetch-Site": "same-site"},
		"foreign referer": {"Referer": "https://evil.example/page"},
	} {
		t.Run(name, func(t *testing.T) {
			g, err := e.catalog.CreateGenre(ctx, "Genre "+name)
			require.NoError(t, err)

			rec := deleteGET("/admin/generos/delete/"+itoa(g.ID), headers)

			assertRedirect(t, rec, "/admin")
			assert.Equal(t, flash.Danger, e.flashesOf(rec)[0].Category)
			_, err = e.catalog.Genre(ctx, g.ID)
			assert.NoError(t, err, "genre must survive a cross-site delete")
		})
	}

	t.Run("same origin", func(t *testing.T) {
		g, err := e.catalog.CreateGenre(ctx, "Samba")
		require.NoError(t, err)

		rec := deleteGET("/admin/generos/delete/"+itoa(g.ID), map[string]string{
			"Sec-Fetch-Site": "same-origin",
			"Referer":        "http://example.com/admin",
		})

		assertRedirect(t, rec, "/admin")
		assert.Equal(t, flash.Success, e.flashesOf(rec)[0].Category)
		_, err = e.catalog.Genre(ctx, g.ID)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("dashboard posts deletes", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/admin", nil, admin)
		body := rec.Body.String()
		assert.Contains(t, body, `<form method="post" action="/admin/generos/delete/`)
		assert.NotContains(t, body, `<a href="/admin/generos/delete/`)
	})
}

func TestAdmin_Dashboard(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := e.register(t, "Admin", "admin@gmail.com")
	_, err := e.catalog.CreateArtist(context.Background(), "Anitta")
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/admin", nil, admin)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Anitta")
}

// =========================================================================
// API TESTS
// =========================================================================

func TestSearchArtists(t *testing.T) {
	e := newTestEnv(t, nil)
	user := e.register(t, "Ana", "ana@example.com")
	for _, name := range []string{"Anitta", "Ana Castela", "Djavan"} {
		_, err := e.catalog.CreateArtist(context.Background(), name)
		require.NoError(t, err)
	}

	rec := e.do(t, http.MethodGet, "/api/artists/search?q=AN", nil, user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var names []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Equal(t, []string{"Ana Castela", "Anitta", "Djavan"}, names)

	rec = e.do(t, http.MethodGet, "/api/artists/search?q=", nil, user)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// =========================================================================
// Health TESTS
// =========================================================================

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	NewHealthHandler(fakePinger{}, logger).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(fakePinger{err: io.ErrUnexpectedEOF}, logger).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
