// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. The pool is capped at one connection: SQLite allows a
// single writer anyway, and it makes ":memory:" databases behave (every new
// connection to ":memory:" would otherwise see an empty database).
//
// Because of that cap, code running inside WithinTx must only use the Store it
// is handed; touching DB directly from inside the callback would wait forever
// for the connection the transaction holds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/musicrec/internal/repository"
)

var (
	_ repository.Transactor = (*DB)(nil)
	_ repository.Store      = store{}
)

// querier is the subset of *sql.DB and *sql.Tx the repositories need, so the
// same code runs with or without a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store hands out repositories bound to one querier.
type store struct {
	q querier
}

func (s store) Users() repository.UserRepository         { return &UserDB{q: s.q} }
func (s store) Genres() repository.GenreRepository       { return &GenreDB{q: s.q} }
func (s store) Artists() repository.ArtistRepository     { return &ArtistDB{q: s.q} }
func (s store) Tracks() repository.TrackRepository       { return &TrackDB{q: s.q} }
func (s store) Favorites() repository.FavoriteRepository { return &FavoriteDB{q: s.q} }

// DB owns the connection pool. Its embedded store runs every query outside a
// transaction; WithinTx provides a transaction-bound one.
type DB struct {
	store
	conn *sql.DB
}

// New opens the database at path (a file path or ":memory:") and applies any
// pending migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{store: store{q: conn}, conn: conn}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn turns a path into a modernc DSN with the pragmas set per connection.
// Foreign keys are off by default in SQLite and the ON DELETE rules in the
// schema depend on them.
func dsn(path string) string {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if path == ":memory:" {
		return "file::memory:?" + strings.Join(pragmas, "&")
	}
	pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	return "file:" + path + "?" + strings.Join(pragmas, "&")
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithinTx runs fn in a transaction. A panic inside fn rolls back and is
// re-raised.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// constraintKind classifies SQLite constraint violations. modernc reports
// extended result codes; the message check covers builds that only report the
// primary SQLITE_CONSTRAINT code.
func constraintKind(err error) (unique, foreignKey bool) {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false, false
	}
	code := se.Code()
	if code&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false, false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true, false
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return false, true
	}
	msg := se.Error()
	return strings.Contains(msg, "UNIQUE constraint"), strings.Contains(msg, "FOREIGN KEY constraint")
}

func isUniqueViolation(err error) bool {
	unique, _ := constraintKind(err)
	return unique
}

func isForeignKeyViolation(err error) bool {
	_, fk := constraintKind(err)
	return fk
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
