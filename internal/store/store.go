// Package store persists station mappings, reports and administrators in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"cabview.railmap.org/internal/appconf"
	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
)

//go:embed schema.sql
var ddl string

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid report status")
	ErrEmptyLine     = errors.New("line has no stations")
	ErrLineExists    = errors.New("line already exists for this video")
	ErrDuplicate     = errors.New("station already on line")
)

type Config struct {
	DBPath string
	Env    appconf.Environment
	Clock  clock.Clock
}

// Store is the SQLite-backed data store.
type Store struct {
	db     *sql.DB
	path   string
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens (creating if needed) the database at cfg.DBPath and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Env == appconf.Test && cfg.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", cfg.DBPath)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, err
	}

	// :memory: must be on a single connection before the schema is applied.
	configureConnectionPool(db, cfg.DBPath)

	if err := configureSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}
	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return &Store{
		db:     db,
		path:   cfg.DBPath,
		clock:  cfg.Clock,
		logger: logging.WithComponent(slog.Default(), "store"),
	}, nil
}

func dsn(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		params += "&_journal_mode=WAL"
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

func configureSQLite(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name        string
		description string
	}{
		{"PRAGMA cache_size=-16000", "Set cache size to 16MB"},
		{"PRAGMA temp_store=MEMORY", "Store temporary data in memory"},
	}

	logger := logging.WithComponent(slog.Default(), "sqlite_settings")
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma.name); err != nil {
			logging.LogError(logger, fmt.Sprintf("Failed to set %s", pragma.description), err)
			return fmt.Errorf("failed to execute %s: %w", pragma.name, err)
		}
	}
	logging.LogOperation(logger, "sqlite_settings_applied", slog.Int("pragma_count", len(pragmas)))
	return nil
}

// configureConnectionPool limits :memory: databases to one connection, since
// each connection would otherwise see its own empty database.
func configureConnectionPool(db *sql.DB, path string) {
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) now() int64 {
	return s.clock.NowUnixMilli()
}

// TableCounts returns row counts for the known tables.
func (s *Store) TableCounts(ctx context.Context) (map[string]int, error) {
	queries := map[string]string{
		"station_mappings": "SELECT COUNT(*) FROM station_mappings",
		"reports":          "SELECT COUNT(*) FROM reports",
		"admin_users":      "SELECT COUNT(*) FROM admin_users",
	}

	counts := make(map[string]int, len(queries))
	for table, query := range queries {
		var n int
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
