// Package sqlite implements the archive, consent and user stores on a single
// SQLite database with FTS5 index tables.
package sqlite

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenDB opens the database at path and applies pending migrations.
//
// The pool is capped at one connection: every store shares this handle and
// writes are serialised through it.
func OpenDB(path string) (*sqlx.DB, error) {
	db, err := OpenRaw(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("archive database opened", "path", path)
	return db, nil
}

// OpenRaw opens the database without touching the schema.
func OpenRaw(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Migrate applies all pending up migrations. The returned migrator is not
// closed because closing it would close db.
func Migrate(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func SchemaVersion(db *sqlx.DB) (version uint, dirty bool, err error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite", drv)
}

// Stores bundles every store over one shared handle.
type Stores struct {
	DB       *sqlx.DB
	Archive  *Archive
	Consents *ConsentStore
	Users    *UserStore
}

// NewStores opens the database described by cfg and builds the stores on it.
func NewStores(cfg store.StoreConfig, tok store.Tokenizer) (*Stores, error) {
	db, err := OpenDB(cfg.Path)
	if err != nil {
		return nil, err
	}
	users, err := NewUserStore(db, cfg.UserCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Stores{
		DB:       db,
		Archive:  NewArchive(db, tok),
		Consents: NewConsentStore(db, cfg.DefaultAllow),
		Users:    users,
	}, nil
}

// Close closes the shared handle.
func (s *Stores) Close() error {
	return s.DB.Close()
}
