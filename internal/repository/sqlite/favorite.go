package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
)

var _ repository.FavoriteRepository = (*FavoriteDB)(nil)

// FavoriteDB manages the user_genres and user_artists join tables.
type FavoriteDB struct {
	q querier
}

// Get returns the user's favorite genre ids (ascending) and artists (by name).
func (f *FavoriteDB) Get(ctx context.Context, userID int64) (model.Preferences, error) {
	prefs := model.Preferences{GenreIDs: []int64{}, Artists: []model.Artist{}}

	rows, err := f.q.QueryContext(ctx,
		`SELECT genre_id FROM user_genres WHERE user_id = ? ORDER BY genre_id`, userID)
	if err != nil {
		return prefs, fmt.Errorf("sqlite: loading favorite genres: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return prefs, fmt.Errorf("sqlite: scanning favorite genre: %w", err)
		}
		prefs.GenreIDs = append(prefs.GenreIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return prefs, fmt.Errorf("sqlite: iterating favorite genres: %w", err)
	}
	rows.Close()

	rows, err = f.q.QueryContext(ctx,
		`SELECT a.id, a.name
		 FROM user_artists ua
		 JOIN artists a ON a.id = ua.artist_id
		 WHERE ua.user_id = ?
		 ORDER BY a.name_key`, userID)
	if err != nil {
		return prefs, fmt.Errorf("sqlite: loading favorite artists: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Artist
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return prefs, fmt.Errorf("sqlite: scanning favorite artist: %w", err)
		}
		prefs.Artists = append(prefs.Artists, a)
	}
	if err := rows.Err(); err != nil {
		return prefs, fmt.Errorf("sqlite: iterating favorite artists: %w", err)
	}
	return prefs, nil
}

// Replace deletes both favorite sets and inserts the new ones. It is not a
// diff: after it returns the stored sets are exactly genreIDs and artistIDs.
func (f *FavoriteDB) Replace(ctx context.Context, userID int64, genreIDs, artistIDs []int64) error {
	if _, err := f.q.ExecContext(ctx, `DELETE FROM user_genres WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: clearing favorite genres: %w", err)
	}
	if _, err := f.q.ExecContext(ctx, `DELETE FROM user_artists WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: clearing favorite artists: %w", err)
	}

	for _, gid := range genreIDs {
		if _, err := f.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_genres (user_id, genre_id) VALUES (?, ?)`, userID, gid,
		); err != nil {
			if isForeignKeyViolation(err) {
				return apperror.ValidationFailed("generos", fmt.Sprintf("Gênero %d não existe.", gid))
			}
			return fmt.Errorf("sqlite: inserting favorite genre %d: %w", gid, err)
		}
	}
	for _, aid := range artistIDs {
		if _, err := f.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_artists (user_id, artist_id) VALUES (?, ?)`, userID, aid,
		); err != nil {
			if isForeignKeyViolation(err) {
				return apperror.ValidationFailed("artistas", fmt.Sprintf("Artista %d não existe.", aid))
			}
			return fmt.Errorf("sqlite: inserting favorite artist %d: %w", aid, err)
		}
	}
	return nil
}
