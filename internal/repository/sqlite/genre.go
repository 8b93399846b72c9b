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

var _ repository.GenreRepository = (*GenreDB)(nil)

type GenreDB struct {
	q querier
}

func (g *GenreDB) Create(ctx context.Context, genre *model.Genre) error {
	res, err := g.q.ExecContext(ctx, `INSERT INTO genres (name, name_key) VALUES (?, ?)`,
		genre.Name, model.NameKey(genre.Name))
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", fmt.Sprintf("O gênero %q já existe.", genre.Name))
		}
		return fmt.Errorf("sqlite: inserting genre: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading genre id: %w", err)
	}
	genre.ID = id
	return nil
}

func (g *GenreDB) GetByID(ctx context.Context, id int64) (*model.Genre, error) {
	var genre model.Genre
	err := g.q.QueryRowContext(ctx,
		`SELECT id, name FROM genres WHERE id = ?`, id,
	).Scan(&genre.ID, &genre.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("genre", id)
		}
		return nil, fmt.Errorf("sqlite: getting genre %d: %w", id, err)
	}
	return &genre, nil
}

func (g *GenreDB) List(ctx context.Context) ([]model.Genre, error) {
	rows, err := g.q.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY name_key`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing genres: %w", err)
	}
	defer rows.Close()

	genres := []model.Genre{}
	for rows.Next() {
		var genre model.Genre
		if err := rows.Scan(&genre.ID, &genre.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning genre row: %w", err)
		}
		genres = append(genres, genre)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating genres: %w", err)
	}
	return genres, nil
}

func (g *GenreDB) Update(ctx context.Context, genre *model.Genre) error {
	res, err := g.q.ExecContext(ctx,
		`UPDATE genres SET name = ?, name_key = ? WHERE id = ?`,
		genre.Name, model.NameKey(genre.Name), genre.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", fmt.Sprintf("O gênero %q já existe.", genre.Name))
		}
		return fmt.Errorf("sqlite: updating genre %d: %w", genre.ID, err)
	}
	return requireAffected(res, "genre", genre.ID)
}

// Delete refuses to remove a genre that tracks still use. Favorite links to
// the genre are removed by ON DELETE CASCADE.
func (g *GenreDB) Delete(ctx context.Context, id int64) error {
	var tracks int
	if err := g.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM track_genres WHERE genre_id = ?`, id,
	).Scan(&tracks); err != nil {
		return fmt.Errorf("sqlite: counting tracks of genre %d: %w", id, err)
	}
	if tracks > 0 {
		return apperror.Conflict("genre",
			fmt.Sprintf("Não é possível excluir: %d música(s) usam este gênero.", tracks))
	}

	res, err := g.q.ExecContext(ctx, `DELETE FROM genres WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Conflict("genre", "Não é possível excluir: há músicas com este gênero.")
		}
		return fmt.Errorf("sqlite: deleting genre %d: %w", id, err)
	}
	return requireAffected(res, "genre", id)
}
