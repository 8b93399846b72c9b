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
	"github.com/sakif/musicrec/internal/validation"
)

// PreferenceService manages a user's favorite genres and artists and the
// rest of the self-service profile.
type PreferenceService struct {
	store  repository.Transactor
	logger *slog.Logger
}

func NewPreferenceService(store repository.Transactor, logger *slog.Logger) *PreferenceService {
	return &PreferenceService{store: store, logger: logger}
}

// SetPreferences replaces both favorite sets of the user in one transaction.
//
// genreIDs must name existing genres; duplicates are ignored. artistNames
// are form values that may each contain several comma-separated names. Each
// name is resolved with ArtistRepository.Ensure, which reuses an existing
// artist regardless of case and creates missing ones.
//
// Either both sets are fully replaced or, on any error, nothing changes.
// Artists created along the way are rolled back with the rest.
func (s *PreferenceService) SetPreferences(ctx context.Context, userID int64, genreIDs []int64, artistNames []string) (model.Preferences, error) {
	genreIDs = uniqueIDs(genreIDs)
	names := SplitNames(artistNames)
	for _, name := range names {
		if len([]rune(name)) > MaxNameLength {
			return model.Preferences{}, apperror.ValidationFailed("artistas",
				fmt.Sprintf("O nome de artista %q é longo demais.", name))
		}
	}

	var prefs model.Preferences
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		for _, id := range genreIDs {
			if _, err := tx.Genres().GetByID(ctx, id); err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					return apperror.ValidationFailed("generos", fmt.Sprintf("Gênero %d não existe.", id))
				}
				return err
			}
		}

		artistIDs := make([]int64, 0, len(names))
		seen := make(map[int64]bool, len(names))
		for _, name := range names {
			artist, err := tx.Artists().Ensure(ctx, name)
			if err != nil {
				return fmt.Errorf("resolving artist %q: %w", name, err)
			}
			if !seen[artist.ID] {
				seen[artist.ID] = true
				artistIDs = append(artistIDs, artist.ID)
			}
		}

		if err := tx.Favorites().Replace(ctx, userID, genreIDs, artistIDs); err != nil {
			return err
		}

		var err error
		prefs, err = tx.Favorites().Get(ctx, userID)
		return err
	})
	if err != nil {
		return model.Preferences{}, fmt.Errorf("service/preferences: saving for user %d: %w", userID, err)
	}

	s.logger.Info("preferences saved",
		slog.Int64("userID", userID),
		slog.Int("genres", len(prefs.GenreIDs)),
		slog.Int("artists", len(prefs.Artists)),
	)
	return prefs, nil
}

// Preferences returns the user's current favorite sets.
func (s *PreferenceService) Preferences(ctx context.Context, userID int64) (model.Preferences, error) {
	prefs, err := s.store.Favorites().Get(ctx, userID)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("service/preferences: loading for user %d: %w", userID, err)
	}
	return prefs, nil
}

// PreferenceForm is what the preference page needs to render: the whole
// catalog of choices plus what the user already picked.
type PreferenceForm struct {
	Genres   []model.Genre
	Artists  []model.Artist
	Selected model.Preferences
}

// IsArtistSelected reports whether the artist name is already a favorite.
func (f PreferenceForm) IsArtistSelected(name string) bool {
	key := model.NameKey(name)
	for _, a := range f.Selected.Artists {
		if model.NameKey(a.Name) == key {
			return true
		}
	}
	return false
}

func (s *PreferenceService) Form(ctx context.Context, userID int64) (*PreferenceForm, error) {
	genres, err := s.store.Genres().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/preferences: listing genres: %w", err)
	}
	artists, err := s.store.Artists().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/preferences: listing artists: %w", err)
	}
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PreferenceForm{Genres: genres, Artists: artists, Selected: prefs}, nil
}

type profileInput struct {
	Name string `validate:"notblank,min=2,max=150" label:"Nome"`
}

// UpdateProfile changes the display name. Email and the admin flag are not
// editable.
func (s *PreferenceService) UpdateProfile(ctx context.Context, userID int64, name string) error {
	in := profileInput{Name: strings.TrimSpace(name)}
	if err := validation.ValidateStruct(&in); err != nil {
		return firstFieldError(err)
	}
	if err := s.store.Users().UpdateName(ctx, userID, in.Name); err != nil {
		return fmt.Errorf("service/preferences: renaming user %d: %w", userID, err)
	}
	return nil
}

// DeleteAccount removes the user. Favorite links go with it through the
// foreign key cascade; catalog rows are untouched.
func (s *PreferenceService) DeleteAccount(ctx context.Context, userID int64) error {
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return fmt.Errorf("service/preferences: deleting user %d: %w", userID, err)
	}
	s.logger.Info("account deleted", slog.Int64("userID", userID))
	return nil
}
