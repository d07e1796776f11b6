// Package database is the SQLite persistence layer for members, posts and
// image references. The schema is applied through embedded migrations on
// open, so a fresh database file is always ready to use.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"blogarchive/pkg/logger"
)

// ErrPostNotFound is returned by operations that target one specific post
// when no row matches.
var ErrPostNotFound = errors.New("post not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the SQLite handle with the archive's query methods.
type DB struct {
	conn   *sql.DB
	logger logger.Logger
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations.
func Open(path string, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// races between the scraper and query commands.
	conn.SetMaxOpenConns(1)

	if err := runMigrations(conn, log); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, logger: log}, nil
}

func runMigrations(conn *sql.DB, log logger.Logger) error {
	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("Database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if version, dirty, err := m.Version(); err == nil {
		log.InfoWithFields("Database migrated", map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		})
	}

	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// closeRows closes a result set, logging the error that a deferred close
// would otherwise swallow.
func (db *DB) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		db.logger.WithError(err).Warn("Failed to close result rows")
	}
}
