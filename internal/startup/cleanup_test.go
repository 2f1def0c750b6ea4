package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelharbor/mediaworker/internal/pipeline"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeDirWithAge(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	past := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(dir, past, past))
	return dir
}

func TestCleanupOrphanedWorkDirs(t *testing.T) {
	root := t.TempDir()

	old := makeDirWithAge(t, root, pipeline.WorkDirPrefix+"01OLD-abc", 2*time.Hour)
	fresh := makeDirWithAge(t, root, pipeline.WorkDirPrefix+"01NEW-def", time.Minute)
	unrelated := makeDirWithAge(t, root, "unrelated-dir", 2*time.Hour)

	removed, err := CleanupOrphanedWorkDirs(newTestLogger(), root, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh, "fresh work dirs may belong to a live worker")
	assert.DirExists(t, unrelated, "only prefixed directories are touched")
}

func TestCleanupOrphanedWorkDirs_IgnoresFiles(t *testing.T) {
	root := t.TempDir()

	file := filepath.Join(root, pipeline.WorkDirPrefix+"not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(file, past, past))

	removed, err := CleanupOrphanedWorkDirs(newTestLogger(), root, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.FileExists(t, file)
}

func TestCleanupOrphanedWorkDirs_MissingRoot(t *testing.T) {
	removed, err := CleanupOrphanedWorkDirs(newTestLogger(), filepath.Join(t.TempDir(), "nope"), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
