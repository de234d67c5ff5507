// Package db stores goals in SQL: a SQLite file for a single machine, or PostgreSQL
// behind goalpost-server. Both dialects share one implementation of store.Store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/existflow/goalpost/internal/store"
)

// Dialect selects SQL syntax differences
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB wraps the database connection and implements store.Store
type DB struct {
	*sql.DB
	dialect Dialect
	newID   func() string
}

var _ store.Store = (*DB)(nil)

// DefaultDBPath returns the default database path (~/.goalpost/goals.db)
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".goalpost", "goals.db"), nil
}

// Open opens or creates the SQLite database
func Open(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent patches
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return setup(sqlDB, SQLite)
}

// OpenPostgres connects to PostgreSQL
func OpenPostgres(dbURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return setup(sqlDB, Postgres)
}

// OpenURL picks the dialect from the DSN: postgres:// and postgresql:// URLs go to
// PostgreSQL, anything else is a SQLite path
func OpenURL(dsn string) (*DB, error) {
	if IsPostgresURL(dsn) {
		return OpenPostgres(dsn)
	}
	return Open(strings.TrimPrefix(dsn, "sqlite://"))
}

// IsPostgresURL reports whether dsn names a PostgreSQL database
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// OpenDefault opens the database at the default path
func OpenDefault() (*DB, error) {
	path, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

func setup(sqlDB *sql.DB, dialect Dialect) (*DB, error) {
	// Test connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, dialect: dialect, newID: newUUID}

	// Run migrations
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Dialect returns the SQL dialect in use
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
