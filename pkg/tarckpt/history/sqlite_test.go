package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	started := time.Date(2026, 5, 4, 3, 2, 1, 500, time.UTC)

	store1, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save(sampleRecord("s-1", "ckpt.tar", started)))
	require.NoError(t, store1.Close())

	store2, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Load("s-1")
	require.NoError(t, err)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Len(t, got.Failures, 2)
}

func TestSQLiteStore_DeleteCascadesFailures(t *testing.T) {
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(sampleRecord("s-1", "ckpt.tar", time.Now())))
	require.NoError(t, store.Delete("s-1"))

	// Re-saving without failures must not resurrect the old ones.
	require.NoError(t, store.Save(history.Record{SessionID: "s-1", ArchivePath: "ckpt.tar"}))
	got, err := store.Load("s-1")
	require.NoError(t, err)
	assert.Empty(t, got.Failures)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := history.NewSQLiteStore("/nonexistent/path/history.db")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
