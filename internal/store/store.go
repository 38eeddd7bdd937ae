package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"uk.co.dudmesh.bloggr/internal/model"
)

//go:embed schema.sql
var schema string

type Database struct {
	db *sqlx.DB
}

// Open connects to the sqlite file at path, creating its directory if needed.
// Connections are not kept idle: each request opens its own and closes it on teardown.
func Open(path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxIdleConns(0)

	return &Database{db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Init drops and recreates every table.
func (d *Database) Init(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Request returns a handle scoped to a single request. No connection is
// opened until the handle is first used.
func (d *Database) Request() *Handle {
	return &Handle{db: d.db}
}

// Handle owns at most one connection. It must not be shared between requests.
type Handle struct {
	db   *sqlx.DB
	conn *sqlx.Conn
}

// Conn returns the handle's connection, opening it on first use.
func (h *Handle) Conn(ctx context.Context) (*sqlx.Conn, error) {
	if h.conn != nil {
		return h.conn, nil
	}
	conn, err := h.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	h.conn = conn
	return conn, nil
}

// Opened reports whether a connection has been acquired.
func (h *Handle) Opened() bool {
	return h.conn != nil
}

// Close releases the connection. Closing a handle that never connected is a no-op.
func (h *Handle) Close() error {
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// commit runs fn in a transaction committed as soon as fn returns.
func (h *Handle) commit(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	conn, err := h.Conn(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func uniqueViolation(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	switch msg := sqliteErr.Error(); {
	case strings.Contains(msg, "user.username"):
		return model.ErrorDuplicateUsername
	case strings.Contains(msg, "user.email"):
		return model.ErrorDuplicateEmail
	}
	return model.ErrorDuplicateUser
}

func expectOneRow(res interface{ RowsAffected() (int64, error) }) error {
	if rows, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if rows != 1 {
		return fmt.Errorf("expected 1 row to be affected, got %d", rows)
	}
	return nil
}
