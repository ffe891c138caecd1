package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
)

// advisoryLockKey serialises concurrent wotdaily runs migrating one
// postgres database
const advisoryLockKey = 730125001

// Migrator applies embedded schema migrations to one database
type Migrator struct {
	db       *sql.DB
	postgres bool
	logger   *slog.Logger
}

// New creates a migrator for db. driver is the database/sql driver name;
// "postgres" switches to $n placeholders and advisory locking.
func New(db *sql.DB, driver string, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		db:       db,
		postgres: driver == "postgres" || driver == "postgresql",
		logger:   logger,
	}
}

// Up applies every pending migration found in dir of fsys and returns the
// versions it applied. Running it against an up-to-date database applies
// nothing.
func (m *Migrator) Up(ctx context.Context, fsys fs.FS, dir string) ([]int, error) {
	migrations, err := LoadMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := m.ensureSchemaTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema table: %w", err)
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unlock()

	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	done := make(map[int]bool, len(applied))
	current := 0
	for _, v := range applied {
		done[v] = true
		current = max(current, v)
	}

	var ran []int
	for _, migration := range migrations {
		if done[migration.Version] {
			continue
		}
		// History can't diverge: nothing below the current version may be pending
		if migration.Version < current {
			return ran, fmt.Errorf("cannot apply migration %d: version %d is already applied (migrations must be applied in order)", migration.Version, current)
		}
		for _, dep := range migration.Dependencies {
			if !done[dep] {
				return ran, fmt.Errorf("migration %d depends on version %d which has not been applied", migration.Version, dep)
			}
		}

		if err := m.apply(ctx, migration); err != nil {
			return ran, fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		m.logger.Info("applied migration", "version", migration.Version, "name", migration.Name)

		done[migration.Version] = true
		ran = append(ran, migration.Version)
	}

	return ran, nil
}

// Version returns the highest applied migration version, or 0 for a
// database that was never migrated
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil && isMissingTable(err) {
		return 0, nil
	}
	return version, err
}

// Applied returns the applied migration versions in ascending order
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		if isMissingTable(err) {
			return []int{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	versions := []int{}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func isMissingTable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

func (m *Migrator) ensureSchemaTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (m *Migrator) run(ctx context.Context, e execer, migration Migration) error {
	if _, err := e.ExecContext(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	record := "INSERT INTO schema_migrations (version) VALUES (" + m.placeholder(1) + ")"
	if _, err := e.ExecContext(ctx, record, migration.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// apply runs one migration, inside a transaction unless it opted out
func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	if migration.NoTransaction {
		return m.run(ctx, m.db, migration)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := m.run(ctx, tx, migration); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (m *Migrator) placeholder(n int) string {
	if m.postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// lock takes the postgres advisory lock and returns its release. SQLite
// relies on its own file locking.
func (m *Migrator) lock(ctx context.Context) (func(), error) {
	if !m.postgres {
		return func() {}, nil
	}

	// Advisory locks are per session, so lock and unlock on one connection
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", advisoryLockKey); err != nil {
		conn.Close()
		return nil, err
	}

	return func() {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey); err != nil {
			m.logger.Warn("failed to release migration lock", "error", err)
		}
		conn.Close()
	}, nil
}
