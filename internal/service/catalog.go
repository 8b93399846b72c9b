package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
)

// SearchLimit caps the artist search API.
const SearchLimit = 10

// CatalogService is the admin side: CRUD over genres, artists and tracks,
// plus the artist search used by the preference form.
//
// Authorization is not checked here. Every route that reaches these methods
// is mounted behind auth.RequireAdmin, except SearchArtists which only needs
// a logged-in user.
type CatalogService struct {
	store  repository.Transactor
	logger *slog.Logger
}

func NewCatalogService(store repository.Transactor, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

// Dashboard lists the whole catalog for the admin page.
func (s *CatalogService) Dashboard(ctx context.Context) (*model.Catalog, error) {
	genres, err := s.store.Genres().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing genres: %w", err)
	}
	artists, err := s.store.Artists().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing artists: %w", err)
	}
	tracks, err := s.store.Tracks().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing tracks: %w", err)
	}
	return &model.Catalog{Genres: genres, Artists: artists, Tracks: tracks}, nil
}

// === GENRES ===

func (s *CatalogService) CreateGenre(ctx context.Context, name string) (*model.Genre, error) {
	name, err := requireName("nome", "Nome", name)
	if err != nil {
		return nil, err
	}
	g := &model.Genre{Name: name}
	if err := s.store.Genres().Create(ctx, g); err != nil {
		return nil, fmt.Errorf("service/catalog: creating genre: %w", err)
	}
	s.logger.Info("genre created", slog.Int64("id", g.ID), slog.String("name", g.Name))
	return g, nil
}

func (s *CatalogService) Genre(ctx context.Context, id int64) (*model.Genre, error) {
	return s.store.Genres().GetByID(ctx, id)
}

func (s *CatalogService) UpdateGenre(ctx context.Context, id int64, name string) (*model.Genre, error) {
	name, err := requireName("nome", "Nome", name)
	if err != nil {
		return nil, err
	}
	g := &model.Genre{ID: id, Name: name}
	if err := s.store.Genres().Update(ctx, g); err != nil {
		return nil, fmt.Errorf("service/catalog: updating genre %d: %w", id, err)
	}
	s.logger.Info("genre updated", slog.Int64("id", id))
	return g, nil
}

// DeleteGenre fails with apperror.ErrConflict while any track uses the genre.
func (s *CatalogService) DeleteGenre(ctx context.Context, id int64) error {
	if err := s.store.Genres().Delete(ctx, id); err != nil {
		return fmt.Errorf("service/catalog: deleting genre %d: %w", id, err)
	}
	s.logger.Info("genre deleted", slog.Int64("id", id))
	return nil
}

// === ARTISTS ===

func (s *CatalogService) CreateArtist(ctx context.Context, name string) (*model.Artist, error) {
	name, err := requireName("nome", "Nome", name)
	if err != nil {
		return nil, err
	}
	a := &model.Artist{Name: name}
	if err := s.store.Artists().Create(ctx, a); err != nil {
		return nil, fmt.Errorf("service/catalog: creating artist: %w", err)
	}
	s.logger.Info("artist created", slog.Int64("id", a.ID), slog.String("name", a.Name))
	return a, nil
}

func (s *CatalogService) Artist(ctx context.Context, id int64) (*model.Artist, error) {
	return s.store.Artists().GetByID(ctx, id)
}

func (s *CatalogService) UpdateArtist(ctx context.Context, id int64, name string) (*model.Artist, error) {
	name, err := requireName("nome", "Nome", name)
	if err != nil {
		return nil, err
	}
	a := &model.Artist{ID: id, Name: name}
	if err := s.store.Artists().Update(ctx, a); err != nil {
		return nil, fmt.Errorf("service/catalog: updating artist %d: %w", id, err)
	}
	s.logger.Info("artist updated", slog.Int64("id", id))
	return a, nil
}

// DeleteArtist fails with apperror.ErrConflict while the artist owns tracks.
func (s *CatalogService) DeleteArtist(ctx context.Context, id int64) error {
	if err := s.store.Artists().Delete(ctx, id); err != nil {
		return fmt.Errorf("service/catalog: deleting artist %d: %w", id, err)
	}
	s.logger.Info("artist deleted", slog.Int64("id", id))
	return nil
}

// SearchArtists returns up to SearchLimit artist names containing q, ignoring
// case, in name order. A blank q matches nothing.
func (s *CatalogService) SearchArtists(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}
	artists, err := s.store.Artists().Search(ctx, q, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: searching artists: %w", err)
	}
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names, nil
}

// === TRACKS ===

// TrackInput is the track form. GenreIDs may be empty.
type TrackInput struct {
	Title    string
	ArtistID int64
	GenreIDs []int64
}

func (s *CatalogService) CreateTrack(ctx context.Context, in TrackInput) (*model.Track, error) {
	t, err := s.prepareTrack(in)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := checkTrackRefs(ctx, tx, t); err != nil {
			return err
		}
		if err := tx.Tracks().Create(ctx, t); err != nil {
			return err
		}
		created, err := tx.Tracks().GetByID(ctx, t.ID)
		if err != nil {
			return err
		}
		*t = *created
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/catalog: creating track: %w", err)
	}

	s.logger.Info("track created", slog.Int64("id", t.ID), slog.String("title", t.Title))
	return t, nil
}

func (s *CatalogService) Track(ctx context.Context, id int64) (*model.Track, error) {
	return s.store.Tracks().GetByID(ctx, id)
}

// UpdateTrack overwrites title, artist and the whole genre set.
func (s *CatalogService) UpdateTrack(ctx context.Context, id int64, in TrackInput) (*model.Track, error) {
	t, err := s.prepareTrack(in)
	if err != nil {
		return nil, err
	}
	t.ID = id

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Tracks().GetByID(ctx, id); err != nil {
			return err
		}
		if err := checkTrackRefs(ctx, tx, t); err != nil {
			return err
		}
		if err := tx.Tracks().Update(ctx, t); err != nil {
			return err
		}
		updated, err := tx.Tracks().GetByID(ctx, id)
		if err != nil {
			return err
		}
		*t = *updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/catalog: updating track %d: %w", id, err)
	}

	s.logger.Info("track updated", slog.Int64("id", id))
	return t, nil
}

func (s *CatalogService) DeleteTrack(ctx context.Context, id int64) error {
	if err := s.store.Tracks().Delete(ctx, id); err != nil {
		return fmt.Errorf("service/catalog: deleting track %d: %w", id, err)
	}
	s.logger.Info("track deleted", slog.Int64("id", id))
	return nil
}

func (s *CatalogService) prepareTrack(in TrackInput) (*model.Track, error) {
	title, err := requireName("titulo", "Título", in.Title)
	if err != nil {
		return nil, err
	}
	if in.ArtistID <= 0 {
		return nil, apperror.ValidationFailed("artista_id", "Selecione um artista.")
	}
	return &model.Track{
		Title:    title,
		ArtistID: in.ArtistID,
		GenreIDs: uniqueIDs(in.GenreIDs),
	}, nil
}

// checkTrackRefs turns a missing artist or genre into a validation error
// before the insert, so the form can say which field is wrong.
func checkTrackRefs(ctx context.Context, tx repository.Store, t *model.Track) error {
	if _, err := tx.Artists().GetByID(ctx, t.ArtistID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("artista_id", "Artista inválido.")
		}
		return err
	}
	for _, gid := range t.GenreIDs {
		if _, err := tx.Genres().GetByID(ctx, gid); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ValidationFailed("genero_id", "Gênero inválido.")
			}
			return err
		}
	}
	return nil
}
