// Package flash stores one-shot messages in a cookie so they survive the
// redirect after a form POST and are shown on the next rendered page.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const cookieName = "flash"

// Categories used by the templates to pick a style.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Danger  = "danger"
)

type Message struct {
	Category string `json:"c"`
	Text     string `json:"t"`
}

// Store writes and reads flash cookies.
type Store struct {
	secure bool
}

func NewStore(secure bool) *Store {
	return &Store{secure: secure}
}

// Set replaces any pending messages with msgs. Calling it twice during one
// request keeps only the last call.
func (s *Store) Set(w http.ResponseWriter, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Add is Set with a single message.
func (s *Store) Add(w http.ResponseWriter, category, text string) {
	s.Set(w, Message{Category: category, Text: text})
}

// Pop returns the pending messages and expires the cookie. A malformed
// cookie is discarded and yields no messages.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) []Message {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}
	s.clear(w)

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}

func (s *Store) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
