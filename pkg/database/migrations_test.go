package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrator_Up(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"002_add_notes.sql": {Data: []byte("ALTER TABLE widgets ADD COLUMN notes TEXT NOT NULL DEFAULT '';")},
		"001_widgets.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);")},
		"README.md":         {Data: []byte("ignored")},
	}

	m := NewMigrator(db, zap.NewNop())
	ran, err := m.Up(ctx, fsys)
	require.NoError(t, err)
	require.Len(t, ran, 2)
	assert.Equal(t, "widgets", ran[0].Name)
	assert.Equal(t, 2, ran[1].Version)

	ran, err = m.Up(ctx, fsys)
	require.NoError(t, err)
	assert.Empty(t, ran)

	_, err = db.Exec("INSERT INTO widgets (name, notes) VALUES ('oak', 'wide plank')")
	assert.NoError(t, err)
}

func TestMigrator_Status(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	m := NewMigrator(db, zap.NewNop())

	first := fstest.MapFS{
		"001_widgets.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	}
	_, err := m.Up(ctx, first)
	require.NoError(t, err)

	both := fstest.MapFS{
		"001_widgets.sql": first["001_widgets.sql"],
		"002_gadgets.sql": {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")},
	}
	statuses, err := m.Status(ctx, both)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Pending())
	assert.True(t, statuses[1].Pending())
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db := openMemory(t)
	m := NewMigrator(db, zap.NewNop())

	_, err := m.Up(context.Background(), fstest.MapFS{
		"001_widgets.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"002_broken.sql":  {Data: []byte("ALTER TABLE nope ADD COLUMN x TEXT;")},
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLoad_RejectsBadNames(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no version": {"initial.sql": {Data: []byte("SELECT 1;")}},
		"no name":    {"001.sql": {Data: []byte("SELECT 1;")}},
		"duplicate": {
			"001_a.sql": {Data: []byte("SELECT 1;")},
			"1_b.sql":   {Data: []byte("SELECT 1;")},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(fsys)
			assert.Error(t, err)
		})
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crm.db")
	db, err := New(Config{Path: path, MaxOpenConns: 2, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}
