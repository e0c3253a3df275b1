// Package store persists events in a relational database.
//
// Three backends share one database/sql code path:
//   - a local SQLite file (ncruces/go-sqlite3, no cgo) for development and tests
//   - a hosted libSQL/Turso database (libsql:// URLs)
//   - a hosted Postgres database (postgres:// URLs)
//
// The handle is constructed once by the process and passed to every component
// that needs it; there is no package-level connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/tursodatabase/go-libsql"
)

var (
	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrStale is returned when a conditional update finds a newer updated_at.
	ErrStale = errors.New("event was modified since it was read")
)

// DB wraps the database connection with the event queries.
type DB struct {
	conn    *sql.DB
	dialect dialect
	dsn     string
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	authToken string
}

// WithAuthToken sets the auth token used for hosted libSQL databases.
func WithAuthToken(token string) Option {
	return func(o *openOptions) { o.authToken = token }
}

// Open connects to the database named by dsn.
//
// dsn is a file path (SQLite), a libsql:// URL or a postgres:// URL.
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open("data/stagesync.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(dsn string, opts ...Option) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	d := dialectFor(dsn)
	connStr := dsn
	switch d.name {
	case dialectSQLite:
		path := strings.TrimPrefix(dsn, "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = sqliteDSN(path)
	case dialectLibSQL:
		var err error
		if connStr, err = withAuthToken(dsn, o.authToken); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open(d.driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, dialect: d, dsn: dsn}

	for _, pragma := range d.pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// sqliteDSN adds the per-connection pragmas to a SQLite path.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// withAuthToken appends the libSQL authToken query parameter unless the URL
// already carries one.
func withAuthToken(dsn, token string) (string, error) {
	if token == "" {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	q := u.Query()
	if q.Get("authToken") == "" {
		q.Set("authToken", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Backend returns the name of the database backend ("sqlite", "libsql" or "postgres").
func (db *DB) Backend() string {
	return db.dialect.name
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// For SQLite files the WAL is checkpointed first.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if db.dialect.name == dialectSQLite {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the events table and its indexes if they don't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	for _, stmt := range db.dialect.schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
