// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// PasswordHash is a bcrypt hash and never leaves the server: the json tag
// keeps it out of any API response.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Preferences is the pair of favorite sets a user has declared.
type Preferences struct {
	GenreIDs []int64
	Artists  []Artist
}

// Empty reports whether the user has no favorites at all.
func (p Preferences) Empty() bool {
	return len(p.GenreIDs) == 0 && len(p.Artists) == 0
}

// HasGenre reports whether id is one of the favorite genres. Used by the
// preference form templates to pre-check boxes.
func (p Preferences) HasGenre(id int64) bool {
	for _, g := range p.GenreIDs {
		if g == id {
			return true
		}
	}
	return false
}

// ArtistNames returns the names of the favorite artists in stored order.
func (p Preferences) ArtistNames() []string {
	names := make([]string, 0, len(p.Artists))
	for _, a := range p.Artists {
		names = append(names, a.Name)
	}
	return names
}
