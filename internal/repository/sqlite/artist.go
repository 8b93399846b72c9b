package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
)

var _ repository.ArtistRepository = (*ArtistDB)(nil)

type ArtistDB struct {
	q querier
}

func (a *ArtistDB) Create(ctx context.Context, artist *model.Artist) error {
	res, err := a.q.ExecContext(ctx, `INSERT INTO artists (name, name_key) VALUES (?, ?)`,
		artist.Name, model.NameKey(artist.Name))
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", fmt.Sprintf("O artista %q já existe.", artist.Name))
		}
		return fmt.Errorf("sqlite: inserting artist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading artist id: %w", err)
	}
	artist.ID = id
	return nil
}

func (a *ArtistDB) GetByID(ctx context.Context, id int64) (*model.Artist, error) {
	var artist model.Artist
	err := a.q.QueryRowContext(ctx,
		`SELECT id, name FROM artists WHERE id = ?`, id,
	).Scan(&artist.ID, &artist.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("artist", id)
		}
		return nil, fmt.Errorf("sqlite: getting artist %d: %w", id, err)
	}
	return &artist, nil
}

// GetByName matches on model.NameKey, so case differences outside ASCII
// are ignored too.
func (a *ArtistDB) GetByName(ctx context.Context, name string) (*model.Artist, error) {
	var artist model.Artist
	err := a.q.QueryRowContext(ctx,
		`SELECT id, name FROM artists WHERE name_key = ?`, model.NameKey(name),
	).Scan(&artist.ID, &artist.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("artist", name)
		}
		return nil, fmt.Errorf("sqlite: getting artist %q: %w", name, err)
	}
	return &artist, nil
}

// Ensure inserts first and falls back to reading the existing row when the
// unique index on name rejects the insert. A concurrent request creating the
// same name therefore ends up with the same row instead of a duplicate.
func (a *ArtistDB) Ensure(ctx context.Context, name string) (*model.Artist, error) {
	artist := &model.Artist{Name: name}
	err := a.Create(ctx, artist)
	if err == nil {
		return artist, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return nil, err
	}
	return a.GetByName(ctx, name)
}

func (a *ArtistDB) List(ctx context.Context) ([]model.Artist, error) {
	return a.list(ctx, `SELECT id, name FROM artists ORDER BY name_key`)
}

// Search does a case-insensitive substring match on the folded name. LIKE
// wildcards in query are matched literally.
func (a *ArtistDB) Search(ctx context.Context, query string, limit int) ([]model.Artist, error) {
	pattern := "%" + escapeLike(model.NameKey(query)) + "%"
	return a.list(ctx,
		`SELECT id, name FROM artists WHERE name_key LIKE ? ESCAPE '\' ORDER BY name_key LIMIT ?`,
		pattern, limit)
}

func (a *ArtistDB) list(ctx context.Context, query string, args ...any) ([]model.Artist, error) {
	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing artists: %w", err)
	}
	defer rows.Close()

	artists := []model.Artist{}
	for rows.Next() {
		var artist model.Artist
		if err := rows.Scan(&artist.ID, &artist.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning artist row: %w", err)
		}
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating artists: %w", err)
	}
	return artists, nil
}

func (a *ArtistDB) Update(ctx context.Context, artist *model.Artist) error {
	res, err := a.q.ExecContext(ctx,
		`UPDATE artists SET name = ?, name_key = ? WHERE id = ?`,
		artist.Name, model.NameKey(artist.Name), artist.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", fmt.Sprintf("O artista %q já existe.", artist.Name))
		}
		return fmt.Errorf("sqlite: updating artist %d: %w", artist.ID, err)
	}
	return requireAffected(res, "artist", artist.ID)
}

// Delete refuses to remove an artist that still owns tracks.
func (a *ArtistDB) Delete(ctx context.Context, id int64) error {
	var tracks int
	if err := a.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracks WHERE artist_id = ?`, id,
	).Scan(&tracks); err != nil {
		return fmt.Errorf("sqlite: counting tracks of artist %d: %w", id, err)
	}
	if tracks > 0 {
		return apperror.Conflict("artist",
			fmt.Sprintf("Não é possível excluir: o artista tem %d música(s).", tracks))
	}

	res, err := a.q.ExecContext(ctx, `DELETE FROM artists WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Conflict("artist", "Não é possível excluir: o artista tem músicas.")
		}
		return fmt.Errorf("sqlite: deleting artist %d: %w", id, err)
	}
	return requireAffected(res, "artist", id)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
