package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
)

var _ repository.TrackRepository = (*TrackDB)(nil)

// TrackDB holds the track queries. Create and Update touch two tables
// (tracks and track_genres) and should run inside WithinTx.
type TrackDB struct {
	q querier
}

const trackSelect = `
	SELECT t.id, t.title, t.artist_id, a.name
	FROM tracks t
	JOIN artists a ON a.id = t.artist_id`

func (r *TrackDB) Create(ctx context.Context, track *model.Track) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO tracks (title, artist_id) VALUES (?, ?)`,
		track.Title, track.ArtistID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("artist_id", "Artista inválido.")
		}
		return fmt.Errorf("sqlite: inserting track: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading track id: %w", err)
	}
	track.ID = id

	return r.insertGenres(ctx, track.ID, track.GenreIDs)
}

func (r *TrackDB) insertGenres(ctx context.Context, trackID int64, genreIDs []int64) error {
	for _, gid := range genreIDs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO track_genres (track_id, genre_id) VALUES (?, ?)`,
			trackID, gid,
		); err != nil {
			if isForeignKeyViolation(err) {
				return apperror.ValidationFailed("genre_id", "Gênero inválido.")
			}
			return fmt.Errorf("sqlite: tagging track %d with genre %d: %w", trackID, gid, err)
		}
	}
	return nil
}

func (r *TrackDB) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	var t model.Track
	err := r.q.QueryRowContext(ctx, trackSelect+` WHERE t.id = ?`, id).
		Scan(&t.ID, &t.Title, &t.ArtistID, &t.ArtistName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("track", id)
		}
		return nil, fmt.Errorf("sqlite: getting track %d: %w", id, err)
	}

	tracks := []model.Track{t}
	if err := r.attachGenres(ctx, tracks); err != nil {
		return nil, err
	}
	return &tracks[0], nil
}

func (r *TrackDB) List(ctx context.Context) ([]model.Track, error) {
	return r.query(ctx, trackSelect+` ORDER BY t.id`)
}

// Recommend is the whole recommendation engine: a track qualifies when its
// artist is a favorite OR any of its genres is a favorite. Users without
// favorites match nothing.
func (r *TrackDB) Recommend(ctx context.Context, userID int64) ([]model.Track, error) {
	return r.query(ctx, trackSelect+`
		WHERE t.artist_id IN (SELECT artist_id FROM user_artists WHERE user_id = ?)
		   OR EXISTS (
				SELECT 1
				FROM track_genres tg
				JOIN user_genres ug ON ug.genre_id = tg.genre_id
				WHERE tg.track_id = t.id AND ug.user_id = ?
		   )
		ORDER BY t.id`,
		userID, userID)
}

// query reads all track rows first and only then loads genres, so no two
// result sets are open on the single pooled connection at once.
func (r *TrackDB) query(ctx context.Context, query string, args ...any) ([]model.Track, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying tracks: %w", err)
	}

	tracks := []model.Track{}
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.ArtistID, &t.ArtistName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning track row: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating tracks: %w", err)
	}
	rows.Close()

	if err := r.attachGenres(ctx, tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// attachGenres fills GenreIDs and Genres for every track in one query.
func (r *TrackDB) attachGenres(ctx context.Context, tracks []model.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	index := make(map[int64]int, len(tracks))
	ids := make([]int64, len(tracks))
	for i := range tracks {
		index[tracks[i].ID] = i
		ids[i] = tracks[i].ID
		tracks[i].GenreIDs = []int64{}
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT tg.track_id, g.id, g.name
		 FROM track_genres tg
		 JOIN genres g ON g.id = tg.genre_id
		 WHERE tg.track_id IN (`+placeholders(len(ids))+`)
		 ORDER BY g.name_key`,
		int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("sqlite: loading track genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trackID int64
		var g model.Genre
		if err := rows.Scan(&trackID, &g.ID, &g.Name); err != nil {
			return fmt.Errorf("sqlite: scanning track genre: %w", err)
		}
		t := &tracks[index[trackID]]
		t.GenreIDs = append(t.GenreIDs, g.ID)
		t.Genres = append(t.Genres, g)
	}
	return rows.Err()
}

// Update overwrites title, artist and the whole genre set.
func (r *TrackDB) Update(ctx context.Context, track *model.Track) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE tracks SET title = ?, artist_id = ? WHERE id = ?`,
		track.Title, track.ArtistID, track.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("artist_id", "Artista inválido.")
		}
		return fmt.Errorf("sqlite: updating track %d: %w", track.ID, err)
	}
	if err := requireAffected(res, "track", track.ID); err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM track_genres WHERE track_id = ?`, track.ID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing genres of track %d: %w", track.ID, err)
	}
	return r.insertGenres(ctx, track.ID, track.GenreIDs)
}

func (r *TrackDB) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting track %d: %w", id, err)
	}
	return requireAffected(res, "track", id)
}
