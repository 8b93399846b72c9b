package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A package-private type means
// only this package can create the key, so nothing else can read or shadow
// the current user stored under it.
type contextKey string

const userKey contextKey = "currentUser"

// UserLoader is the lookup LoadUser needs. The auth service satisfies it.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// LoadUser resolves the optional current user once per request.
//
// It reads the session cookie, validates the token, loads the user row and
// stores it in the request context. Any failure leaves the request anonymous:
//   - no cookie, or a bad/expired token → anonymous, the stale cookie is cleared
//   - valid token for a user that no longer exists → anonymous, cookie cleared
//   - database error → anonymous for this request, logged, cookie kept
//
// Handlers and the gates below read the result with UserFromContext and never
// touch the cookie themselves.
func LoadUser(tokens *TokenService, users UserLoader, cookies *Cookies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := tokens.Validate(c.Value)
			if err != nil {
				logger.Debug("discarding invalid session", slog.String("error", err.Error()))
				cookies.ClearSession(w)
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					cookies.ClearSession(w)
				} else {
					logger.Error("loading session user failed",
						slog.Int64("userID", userID),
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the current user, or (nil, false) when the request
// is anonymous.
//
// Usage in handlers:
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous visitor
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// RequireAuth sends anonymous visitors to the login page. The original path
// is kept in ?next= so login can bring them back.
//
// It must run after LoadUser.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin fails closed: anything other than an authenticated admin gets
// the "access denied" flash and a redirect home, and next never runs. Mount
// it after RequireAuth so anonymous visitors are sent to login instead.
func RequireAdmin(flashes *flash.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !user.IsAdmin {
				flashes.Add(w, flash.Danger, "Acesso negado: área restrita a administradores.")
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL builds /login?next=<path>.
func LoginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local absolute path and "" otherwise,
// so the login redirect cannot be pointed at another site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return ""
	}
	// "//host" and "/\host" are treated as host-relative by browsers.
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return next
}
