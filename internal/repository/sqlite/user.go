package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB holds the user queries.
type UserDB struct {
	q querier
}

// Create inserts the user and fills in ID and CreatedAt.
//
// A duplicate email comes back from SQLite as a UNIQUE violation on
// users.email; that is translated into apperror.ErrConflict so callers never
// see the raw driver error.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := u.q.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, is_admin, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email", "Este e-mail já está cadastrado.")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

const userColumns = `id, name, email, password_hash, is_admin, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return user, nil
}

// GetByEmail matches case-insensitively (the column is COLLATE NOCASE).
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

// UpdateName changes only the display name. There is deliberately no method
// that writes is_admin after the row is created.
func (u *UserDB) UpdateName(ctx context.Context, id int64, name string) error {
	res, err := u.q.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// Delete removes the user; user_genres and user_artists rows go with it
// through ON DELETE CASCADE.
func (u *UserDB) Delete(ctx context.Context, id int64) error {
	res, err := u.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// requireAffected turns a zero-row UPDATE/DELETE into apperror.ErrNotFound.
func requireAffected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
