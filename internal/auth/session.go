package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "session"

// Cookies writes and clears the session cookie. secure should be true when
// the site is served over HTTPS.
type Cookies struct {
	secure bool
}

func NewCookies(secure bool) *Cookies {
	return &Cookies{secure: secure}
}

// SetSession stores token for ttl.
//
// HttpOnly keeps the token away from page scripts. SameSite=Lax stops other
// sites from submitting our forms with the cookie attached, while normal
// top-level links still carry it.
func (c *Cookies) SetSession(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie.
func (c *Cookies) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
