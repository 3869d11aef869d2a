package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Migration is one versioned schema file, e.g. "003_scheduled_runs.sql"
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// Pending reports whether the migration still has to run
func (s MigrationStatus) Pending() bool {
	return s.AppliedAt == nil
}

// Migrator applies migrations from an fs.FS and records them in
// schema_migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Up applies every pending migration in version order and returns the ones
// it ran. Each migration runs in its own transaction.
func (m *Migrator) Up(ctx context.Context, fsys fs.FS) ([]Migration, error) {
	statuses, err := m.Status(ctx, fsys)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, st := range statuses {
		if !st.Pending() {
			continue
		}
		m.logger.Info("Applying migration",
			zap.Int("version", st.Version),
			zap.String("name", st.Name))

		if err := m.apply(ctx, st.Migration); err != nil {
			return ran, fmt.Errorf("failed to apply migration %d (%s): %w", st.Version, st.Name, err)
		}
		ran = append(ran, st.Migration)
	}

	m.logger.Info("Database migrations up to date",
		zap.Int("applied", len(ran)),
		zap.Int("total", len(statuses)))
	return ran, nil
}

// Status lists every migration in fsys alongside when it was applied
func (m *Migrator) Status(ctx context.Context, fsys fs.FS) ([]MigrationStatus, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := Load(fsys)
	if err != nil {
		return nil, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		statuses[i] = MigrationStatus{Migration: mig}
		if at, ok := applied[mig.Version]; ok {
			at := at
			statuses[i].AppliedAt = &at
		}
	}
	return statuses, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return m.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			mig.Version, mig.Name)
		return err
	})
}

// Load reads the *.sql files at the root of fsys sorted by version. File
// names must start with a numeric version followed by an underscore.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationName(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseMigrationName(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, ".sql")
	prefix, name, ok := strings.Cut(base, "_")
	version, err := strconv.Atoi(prefix)
	if !ok || err != nil || version <= 0 || name == "" {
		return 0, "", fmt.Errorf("invalid migration filename %q, want NNN_name.sql", filename)
	}
	return version, name, nil
}
