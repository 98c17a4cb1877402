package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL flavour behind a DB. It doubles as the migration
// set directory.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteParams turn on foreign keys, take the write lock at BEGIN and wait
// on a busy database instead of failing immediately.
const sqliteParams = "_foreign_keys=1&_txlock=immediate&_busy_timeout=10000"

type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to databaseURL: postgres:// and postgresql:// go through
// pgx, sqlite:// and file: through go-sqlite3.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	dialect, driver, dsn, err := resolve(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	switch dialect {
	case SQLite:
		db.SetMaxIdleConns(4)
		db.SetMaxOpenConns(4)
	default:
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

func resolve(databaseURL string) (Dialect, string, string, error) {
	raw := strings.TrimSpace(databaseURL)
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres, "pgx", raw, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return SQLite, "sqlite3", sqliteDSN(raw[len("sqlite://"):]), nil
	case strings.HasPrefix(lower, "file:"):
		return SQLite, "sqlite3", sqliteDSN(raw[len("file:"):]), nil
	default:
		return "", "", "", fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "slangdict.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + sqliteParams
}

// ForUpdate is the row-lock suffix for a SELECT on the target of a
// read-modify-write. SQLite already holds the database write lock from
// BEGIN IMMEDIATE, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// Querier is satisfied by *sql.DB, *sql.Tx and *DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
