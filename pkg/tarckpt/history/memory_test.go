package history_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Len(t *testing.T) {
	store := history.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Save(history.Record{SessionID: "a"}))
	require.NoError(t, store.Save(history.Record{SessionID: "b"}))
	require.NoError(t, store.Save(history.Record{SessionID: "a"}))
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_CopiesFailures(t *testing.T) {
	store := history.NewMemoryStore()
	defer store.Close()

	rec := history.Record{SessionID: "a", Failures: []history.Failure{{Path: "x"}}}
	require.NoError(t, store.Save(rec))
	rec.Failures[0].Path = "mutated"

	got, err := store.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Failures[0].Path)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := history.NewMemoryStore()
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sid := string(rune('a' + id%26))
			_ = store.Save(history.Record{SessionID: sid, StartedAt: time.Now()})
			_, _ = store.Load(sid)
			_, _ = store.List("")
			_ = store.Delete(sid)
		}(i)
	}
	wg.Wait()
}
