// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation.
package repository

import (
	"context"

	"github.com/sakif/musicrec/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateName(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

type GenreRepository interface {
	Create(ctx context.Context, genre *model.Genre) error
	GetByID(ctx context.Context, id int64) (*model.Genre, error)
	List(ctx context.Context) ([]model.Genre, error)
	Update(ctx context.Context, genre *model.Genre) error
	Delete(ctx context.Context, id int64) error
}

type ArtistRepository interface {
	Create(ctx context.Context, artist *model.Artist) error
	GetByID(ctx context.Context, id int64) (*model.Artist, error)
	GetByName(ctx context.Context, name string) (*model.Artist, error)
	// Ensure returns the artist with the given name (case-insensitive),
	// creating it if absent.
	Ensure(ctx context.Context, name string) (*model.Artist, error)
	List(ctx context.Context) ([]model.Artist, error)
	Search(ctx context.Context, query string, limit int) ([]model.Artist, error)
	Update(ctx context.Context, artist *model.Artist) error
	Delete(ctx context.Context, id int64) error
}

type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id int64) (*model.Track, error)
	List(ctx context.Context) ([]model.Track, error)
	Update(ctx context.Context, track *model.Track) error
	Delete(ctx context.Context, id int64) error
	// Recommend returns every track sharing a genre or the artist with the
	// user's favorites, each once, in id order.
	Recommend(ctx context.Context, userID int64) ([]model.Track, error)
}

type FavoriteRepository interface {
	Get(ctx context.Context, userID int64) (model.Preferences, error)
	// Replace deletes every favorite of the user and inserts the given sets.
	// It is only atomic when called inside Transactor.WithinTx.
	Replace(ctx context.Context, userID int64, genreIDs, artistIDs []int64) error
}

// Store groups the repositories bound to one connection or transaction.
type Store interface {
	Users() UserRepository
	Genres() GenreRepository
	Artists() ArtistRepository
	Tracks() TrackRepository
	Favorites() FavoriteRepository
}

// Transactor is a Store that can open a unit of work. fn receives a Store
// bound to the transaction; returning nil commits, anything else rolls back.
type Transactor interface {
	Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
