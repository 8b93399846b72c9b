package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// NameKey is the comparison form of a genre or artist name: trimmed and
// Unicode case-folded, so "Élis Regina" and "ÉLIS REGINA" share one key.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Track belongs to exactly one artist and to any number of genres.
//
// ArtistName and Genres are filled by read queries for display; writes only
// look at ArtistID and GenreIDs.
type Track struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	ArtistID   int64   `json:"artistId"`
	ArtistName string  `json:"artistName,omitempty"`
	GenreIDs   []int64 `json:"genreIds"`
	Genres     []Genre `json:"genres,omitempty"`
}

// GenreNames joins the genre names for display, e.g. "Rock, Pop".
func (t Track) GenreNames() string {
	names := make([]string, 0, len(t.Genres))
	for _, g := range t.Genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

// HasGenre reports whether the track is tagged with genre id.
func (t Track) HasGenre(id int64) bool {
	for _, g := range t.GenreIDs {
		if g == id {
			return true
		}
	}
	return false
}

// Catalog is everything the admin dashboard lists.
type Catalog struct {
	Genres  []Genre
	Artists []Artist
	Tracks  []Track
}
