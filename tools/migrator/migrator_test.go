package migrator

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, *Migrator) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db, New(db, "sqlite3", nil)
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()

	var name string
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
	err := db.QueryRow(query, tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("failed to check if table exists: %v", err)
	}
	return true
}

func getVersion(t *testing.T, m *Migrator) int {
	t.Helper()

	version, err := m.Version(context.Background())
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	return version
}

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

// validFS is a small, well-formed migration set
func validFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_create_users.sql": file(`-- users table
-- +migrate Up
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
`),
		"m/002_create_tags.sql": file(`-- +migrate Up
CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT);
CREATE INDEX idx_tags_label ON tags(label);
`),
		"m/003_create_posts.sql": file(`-- +migrate Up
-- +migrate Depends: 1
CREATE TABLE posts (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id)
);
`),
		"m/README.md": file("not a migration"),
	}
}

// =============================================================================
// Parser Tests
// =============================================================================

func TestParseMigration_Valid(t *testing.T) {
	migration, err := ParseMigrationFile(validFS(), "m/001_create_users.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if migration.Version != 1 {
		t.Errorf("expected version 1, got %d", migration.Version)
	}
	if migration.Name != "create_users" {
		t.Errorf("expected name 'create_users', got '%s'", migration.Name)
	}
	if !strings.HasPrefix(migration.UpSQL, "CREATE TABLE users") {
		t.Errorf("expected UpSQL to start with 'CREATE TABLE users', got: %s", migration.UpSQL)
	}
	if migration.NoTransaction {
		t.Error("expected NoTransaction to be false")
	}
	if len(migration.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %v", migration.Dependencies)
	}
}

func TestParseMigration_Dependencies(t *testing.T) {
	migration, err := ParseMigration("004_x.sql", []byte("-- +migrate Up\n-- +migrate Depends: 1 3\n\nSELECT 1;"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(migration.Dependencies) != 2 || migration.Dependencies[0] != 1 || migration.Dependencies[1] != 3 {
		t.Errorf("expected dependencies [1 3], got %v", migration.Dependencies)
	}
	if migration.UpSQL != "SELECT 1;" {
		t.Errorf("unexpected UpSQL %q", migration.UpSQL)
	}
}

func TestParseMigration_NoTransaction(t *testing.T) {
	migration, err := ParseMigration("001_x.sql", []byte("-- +migrate Up notransaction\nSELECT 1;"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !migration.NoTransaction {
		t.Error("expected NoTransaction to be true")
	}
}

func TestParseMigration_Errors(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		content     string
		errContains string
	}{
		{"bad filename", "1_x.sql", "-- +migrate Up\nSELECT 1;", "invalid migration filename"},
		{"missing marker", "001_x.sql", "SELECT 1;", "missing '-- +migrate Up'"},
		{"empty sql", "001_x.sql", "-- +migrate Up\n-- nothing here\n", "no SQL statements"},
		{"empty depends", "001_x.sql", "-- +migrate Up\n-- +migrate Depends:\nSELECT 1;", "empty dependency list"},
		{"bad depends", "001_x.sql", "-- +migrate Up\n-- +migrate Depends: one\nSELECT 1;", "invalid dependency version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMigration(tt.filename, []byte(tt.content))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("expected error containing %q, got %v", tt.errContains, err)
			}
		})
	}
}

func TestLoadMigrations_ValidDirectory(t *testing.T) {
	migrations, err := LoadMigrations(validFS(), "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
	}
}

func TestLoadMigrations_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		fsys        fstest.MapFS
		errContains string
	}{
		{
			name: "gap",
			fsys: fstest.MapFS{
				"m/001_a.sql": file("-- +migrate Up\nSELECT 1;"),
				"m/003_c.sql": file("-- +migrate Up\nSELECT 1;"),
			},
			errContains: "gap in migration versions",
		},
		{
			name: "duplicate",
			fsys: fstest.MapFS{
				"m/001_a.sql": file("-- +migrate Up\nSELECT 1;"),
				"m/001_b.sql": file("-- +migrate Up\nSELECT 1;"),
			},
			errContains: "duplicate migration version",
		},
		{
			name: "cycle",
			fsys: fstest.MapFS{
				"m/001_a.sql": file("-- +migrate Up\n-- +migrate Depends: 2\nSELECT 1;"),
				"m/002_b.sql": file("-- +migrate Up\n-- +migrate Depends: 1\nSELECT 1;"),
			},
			errContains: "circular dependency",
		},
		{
			name: "missing dependency",
			fsys: fstest.MapFS{
				"m/001_a.sql": file("-- +migrate Up\n-- +migrate Depends: 7\nSELECT 1;"),
			},
			errContains: "non-existent version 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys, "m")
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("expected error containing %q, got %v", tt.errContains, err)
			}
		})
	}
}

func TestLoadMigrations_DirectoryNotFound(t *testing.T) {
	if _, err := LoadMigrations(validFS(), "missing"); err == nil {
		t.Error("expected error for missing directory")
	}
}

// =============================================================================
// Runner Tests
// =============================================================================

func TestUp_FreshDatabase(t *testing.T) {
	db, m := setupTestDB(t)

	ran, err := m.Up(context.Background(), validFS(), "m")
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if len(ran) != 3 || ran[0] != 1 || ran[2] != 3 {
		t.Errorf("expected versions [1 2 3] applied, got %v", ran)
	}

	for _, table := range []string{"users", "tags", "posts", "schema_migrations"} {
		if !tableExists(t, db, table) {
			t.Errorf("expected table %s to exist", table)
		}
	}
	if v := getVersion(t, m); v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
}

func TestUp_Idempotent(t *testing.T) {
	_, m := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ran, err := m.Up(ctx, validFS(), "m")
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if i > 0 && len(ran) != 0 {
			t.Errorf("run %d applied %v again", i, ran)
		}
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied failed: %v", err)
	}
	if len(applied) != 3 {
		t.Errorf("expected 3 applied migrations, got %v", applied)
	}
}

func TestUp_Incremental(t *testing.T) {
	db, m := setupTestDB(t)
	ctx := context.Background()

	first := validFS()
	delete(first, "m/003_create_posts.sql")
	if _, err := m.Up(ctx, first, "m"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if v := getVersion(t, m); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}

	ran, err := m.Up(ctx, validFS(), "m")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(ran) != 1 || ran[0] != 3 {
		t.Errorf("expected only version 3 applied, got %v", ran)
	}
	if !tableExists(t, db, "posts") {
		t.Error("expected posts table after second run")
	}
}

func TestUp_FailedMigrationRollsBack(t *testing.T) {
	db, m := setupTestDB(t)

	fsys := fstest.MapFS{
		"m/001_a.sql": file("-- +migrate Up\nCREATE TABLE a (id INTEGER);"),
		"m/002_b.sql": file("-- +migrate Up\nCREATE TABLE b (id INTEGER);\nTHIS IS NOT SQL;"),
	}

	ran, err := m.Up(context.Background(), fsys, "m")
	if err == nil || !strings.Contains(err.Error(), "failed to apply migration 2") {
		t.Fatalf("expected migration 2 failure, got %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("expected migration 1 reported as applied, got %v", ran)
	}

	if !tableExists(t, db, "a") {
		t.Error("migration 1 should have been applied")
	}
	if tableExists(t, db, "b") {
		t.Error("migration 2 should have been rolled back")
	}
	if v := getVersion(t, m); v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}
}

func TestUp_NoTransaction(t *testing.T) {
	db, m := setupTestDB(t)

	fsys := fstest.MapFS{
		"m/001_a.sql": file("-- +migrate Up notransaction\nCREATE TABLE a (id INTEGER);"),
	}
	if _, err := m.Up(context.Background(), fsys, "m"); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if !tableExists(t, db, "a") {
		t.Error("expected table a")
	}
}

func TestUp_CannotGoBackwards(t *testing.T) {
	db, m := setupTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"m/001_a.sql": file("-- +migrate Up\nCREATE TABLE a (id INTEGER);"),
		"m/002_b.sql": file("-- +migrate Up\nCREATE TABLE b (id INTEGER);"),
	}
	if _, err := m.Up(ctx, fsys, "m"); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	// Forget version 1 as if it had never been applied
	if _, err := db.Exec("DELETE FROM schema_migrations WHERE version = 1"); err != nil {
		t.Fatalf("failed to edit history: %v", err)
	}

	_, err := m.Up(ctx, fsys, "m")
	if err == nil || !strings.Contains(err.Error(), "must be applied in order") {
		t.Errorf("expected ordering error, got %v", err)
	}
}

func TestUp_InvalidSetTouchesNothing(t *testing.T) {
	db, m := setupTestDB(t)

	fsys := fstest.MapFS{
		"m/001_a.sql": file("-- +migrate Up\nCREATE TABLE a (id INTEGER);"),
		"m/003_c.sql": file("-- +migrate Up\nCREATE TABLE c (id INTEGER);"),
	}
	if _, err := m.Up(context.Background(), fsys, "m"); err == nil {
		t.Fatal("expected gap error")
	}
	if tableExists(t, db, "schema_migrations") {
		t.Error("a rejected migration set must not create the schema table")
	}
}

func TestVersion_FreshDatabase(t *testing.T) {
	_, m := setupTestDB(t)

	if v := getVersion(t, m); v != 0 {
		t.Errorf("expected version 0, got %d", v)
	}

	applied, err := m.Applied(context.Background())
	if err != nil {
		t.Fatalf("Applied failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no applied migrations, got %v", applied)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := New(nil, "postgres", nil).placeholder(2); got != "$2" {
		t.Errorf("postgres placeholder = %q", got)
	}
	if got := New(nil, "sqlite3", nil).placeholder(2); got != "?" {
		t.Errorf("sqlite placeholder = %q", got)
	}
}
