package storage

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/novel-engine/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "save_0", `{"storyID":"intro"}`))
	v, ok, err := s.Get(ctx, "save_0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"storyID":"intro"}`, v)

	require.NoError(t, s.Set(ctx, "save_0", `{"storyID":"forest"}`))
	v, _, _ = s.Get(ctx, "save_0")
	assert.Equal(t, `{"storyID":"forest"}`, v)

	require.NoError(t, s.Del(ctx, "save_0"))
	_, ok, err = s.Get(ctx, "save_0")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Del(ctx, "save_0"), "deleting a missing key is not an error")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), DefaultKeyPrefix, testLogger())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "autosave", "x"))
	assert.True(t, mr.Exists("novel:autosave"), "keys are prefixed")
}

func TestRedisStore_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://"+mr.Addr()+"/0", "", testLogger())
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "", testLogger())
	require.NoError(t, err)
	defer s.Close()
	mr.Close()

	ctx := context.Background()
	assert.Error(t, s.Ping(ctx))
	assert.Error(t, s.Set(ctx, "k", "v"))
	_, _, err = s.Get(ctx, "k")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves.db")
	s, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)

	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "persisted", "yes"))
	require.NoError(t, s.Close())

	// Reopening reruns migrations without error and keeps data.
	s, err = OpenSQLite(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	v, ok, err := s.Get(context.Background(), "persisted")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", v)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestSQLiteStore_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "saves.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Pin one connection so every pragma is read from the same session.
	conn, err := s.db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	var journal string
	require.NoError(t, conn.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", strings.ToLower(journal))

	var busy int
	require.NoError(t, conn.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)

	var syncMode int
	require.NoError(t, conn.QueryRowContext(context.Background(), "PRAGMA synchronous").Scan(&syncMode))
	assert.Equal(t, 1, syncMode, "synchronous=NORMAL")
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ", testLogger())
	assert.Error(t, err)
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"no markers", "CREATE TABLE a (x);", "CREATE TABLE a (x);"},
		{"up only", "-- +migrate Up\nCREATE TABLE a (x);", "\nCREATE TABLE a (x);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (x);\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, upSection(tt.content))
		})
	}
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "intro.yaml"), []byte(`
- storyID: start
  speaker: Guide
  text: Welcome.
- storyID: end
  speaker: Guide
  text: Goodbye.
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skills.json"), []byte(`[{"id":"slash","name":"Slash","cost":{"mp":0,"cooldown":0},"power":{"base":10,"scale":"str"},"target":"enemy"}]`), 0o644))

	lib := NewLibrary(dir, testLogger())
	ctx := context.Background()

	names, err := lib.ListScripts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"intro.yaml"}, names)

	s, err := lib.Script(ctx, "intro.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	again, err := lib.Script(ctx, "intro.yaml")
	require.NoError(t, err)
	assert.Same(t, s, again, "scripts are cached")

	_, err = lib.Script(ctx, "../secrets.json")
	assert.ErrorIs(t, err, ErrInvalidScriptName)
	_, err = lib.Script(ctx, "missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	cats, err := lib.Catalogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cats.Enemies.Len())
	_, ok := cats.Skills.Skill("slash")
	assert.True(t, ok)
	assert.Contains(t, cats.Characters, "hero", "default hero without a characters file")
}

func TestLibrary_NoScenariosDir(t *testing.T) {
	lib := NewLibrary(t.TempDir(), testLogger())
	names, err := lib.ListScripts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
