package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/model"
)

// Page names, one per template file.
const (
	pageHome        = "home"
	pageAbout       = "sobre"
	pageLogin       = "login"
	pageRegister    = "register"
	pagePreferences = "escolher_gostos"
	pageProfile     = "perfil"
	pageDashboard   = "admin_dashboard"
	pageEdit        = "edit"
	pageEditTrack   = "edit_musica"
	pageError       = "error"
)

var pages = []string{
	pageHome, pageAbout, pageLogin, pageRegister, pagePreferences,
	pageProfile, pageDashboard, pageEdit, pageEditTrack, pageError,
}

// viewData is the root object every template receives. Page-specific values
// live under .Page.
type viewData struct {
	CurrentUser   *model.User
	Flashes       []flash.Message
	GitHubEnabled bool
	Page          any
}

// Renderer executes the page templates.
//
// Each page gets its own template set made of base.html, the shared partials
// (files starting with "_") and the page file. That way every page can define
// its own "title" and "content" blocks without clashing with the others.
type Renderer struct {
	pages         map[string]*template.Template
	flashes       *flash.Store
	githubEnabled bool
	logger        *slog.Logger
}

// NewRenderer parses all pages up front so a broken template fails at startup
// instead of on the first request.
func NewRenderer(files fs.FS, flashes *flash.Store, githubEnabled bool, logger *slog.Logger) (*Renderer, error) {
	partials, err := fs.Glob(files, "_*.html")
	if err != nil {
		return nil, fmt.Errorf("listing partials: %w", err)
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		patterns := append([]string{"base.html"}, partials...)
		patterns = append(patterns, name+".html")

		tmpl, err := template.New(name).ParseFS(files, patterns...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		parsed[name] = tmpl
	}

	return &Renderer{
		pages:         parsed,
		flashes:       flashes,
		githubEnabled: githubEnabled,
		logger:        logger,
	}, nil
}

// Render writes page with the given status. Pending flash messages are
// consumed here, so they show up on exactly one rendered page.
//
// The page is executed into a buffer first: a template error halfway through
// would otherwise leave a truncated page behind a 200 status.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Erro interno.", http.StatusInternalServerError)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	view := viewData{
		CurrentUser:   user,
		Flashes:       rd.flashes.Pop(w, r),
		GitHubEnabled: rd.githubEnabled,
		Page:          data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", view); err != nil {
		rd.logger.Error("rendering template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Erro interno.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
