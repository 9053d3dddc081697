package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("xlsx"), 0644))
}

func TestArchivePersistsEntries(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, "index.json", 24*time.Hour)
	require.NoError(t, err)

	created := time.Date(2024, 3, 1, 6, 20, 0, 0, time.UTC)
	require.NoError(t, archive.Record(ArchiveEntry{RunID: "run-1", Path: filepath.Join(dir, "a.xlsx"), CreatedAt: created, Rows: 4}))

	reopened, err := NewArchive(dir, "index.json", 24*time.Hour)
	require.NoError(t, err)
	entries := reopened.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, 4, entries[0].Rows)
	assert.True(t, created.Equal(entries[0].CreatedAt))
}

func TestArchiveRejectsMissingRunID(t *testing.T) {
	archive, err := NewArchive(t.TempDir(), "index.json", 0)
	require.NoError(t, err)
	assert.Error(t, archive.Record(ArchiveEntry{Path: "x.xlsx"}))
}

func TestArchiveCleanup(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, "index.json", 48*time.Hour)
	require.NoError(t, err)
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	archive.now = func() time.Time { return now }

	oldPath := filepath.Join(dir, "old.xlsx")
	newPath := filepath.Join(dir, "new.xlsx")
	writeFile(t, oldPath)
	writeFile(t, newPath)

	require.NoError(t, archive.Record(ArchiveEntry{RunID: "old", Path: oldPath, CreatedAt: now.Add(-72 * time.Hour)}))
	require.NoError(t, archive.Record(ArchiveEntry{RunID: "new", Path: newPath, CreatedAt: now.Add(-time.Hour)}))
	// Already deleted by hand
	require.NoError(t, archive.Record(ArchiveEntry{RunID: "gone", Path: filepath.Join(dir, "gone.xlsx"), CreatedAt: now.Add(-96 * time.Hour)}))

	removed, err := archive.Cleanup()
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newPath)
	assert.NoError(t, err)

	entries := archive.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].RunID)
}

func TestArchiveCleanupKeepsSharedPath(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, "index.json", 48*time.Hour)
	require.NoError(t, err)
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	archive.now = func() time.Time { return now }

	path := filepath.Join(dir, "RAEJobsList 03-10-2024.xlsx")
	writeFile(t, path)

	require.NoError(t, archive.Record(ArchiveEntry{RunID: "stale", Path: path, CreatedAt: now.Add(-72 * time.Hour)}))
	require.NoError(t, archive.Record(ArchiveEntry{RunID: "rerun", Path: path, CreatedAt: now.Add(-time.Hour)}))

	removed, err := archive.Cleanup()
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "stale", removed[0].RunID)

	_, err = os.Stat(path)
	assert.NoError(t, err, "file still referenced by a live entry")

	entries := archive.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "rerun", entries[0].RunID)
}

func TestArchiveZeroRetentionKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, "index.json", 0)
	require.NoError(t, err)
	require.NoError(t, archive.Record(ArchiveEntry{RunID: "r", Path: "x", CreatedAt: time.Unix(0, 0)}))

	removed, err := archive.Cleanup()
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Len(t, archive.Entries(), 1)
}
