// Package storetest opens migrated databases for tests: a temp-file SQLite
// database, or Postgres from TEST_DATABASE_URL or a throwaway container.
package storetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"slangdict/api/internal/store"
)

func NewSQLite(t testing.TB) *store.DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "slangdict.db")
	db, err := store.Open(ctx, "sqlite://"+path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// NewPostgres returns a migrated Postgres database with an empty public
// schema. It skips in -short mode and when neither TEST_DATABASE_URL nor a
// container runtime is available.
func NewPostgres(t *testing.T) *store.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	db, err := store.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := store.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "slang",
				"POSTGRES_PASSWORD": "slang",
				"POSTGRES_DB":       "slang",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://slang:slang@%s:%s/slang?sslmode=disable", host, port.Port())
}

func SeedUser(t testing.TB, db *store.DB, id, role string) {
	t.Helper()
	if err := store.NewSQLStore(db).UpsertUser(context.Background(), store.User{ID: id, Username: id, Role: role}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func SeedTerm(t testing.TB, db *store.DB, text, slug string) int64 {
	t.Helper()
	id, err := store.InsertArchiveTerm(context.Background(), db, text, slug, "")
	if err != nil {
		t.Fatalf("seed term %s: %v", text, err)
	}
	return id
}

func SeedDefinition(t testing.TB, db *store.DB, termID int64, body, example string) int64 {
	t.Helper()
	id, err := store.InsertDefinition(context.Background(), db, termID, body, example)
	if err != nil {
		t.Fatalf("seed definition: %v", err)
	}
	return id
}

// Count runs a COUNT(*) style query and returns its single integer.
func Count(t testing.TB, db *store.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
