package benchmarks

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
)

// BenchmarkMemoryStore_Save measures in-memory history save.
func BenchmarkMemoryStore_Save(b *testing.B) {
	store := history.NewMemoryStore()
	rec := createRecord("session-1", 5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Save(rec)
	}
}

// BenchmarkSQLiteStore_Save measures SQLite history save, failures included.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	store, cleanup := createSQLiteStore(b)
	defer cleanup()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Save(createRecord(sessionID(i%100), 5))
	}
}

// BenchmarkSQLiteStore_List measures listing an archive's sessions.
func BenchmarkSQLiteStore_List(b *testing.B) {
	store, cleanup := createSQLiteStore(b)
	defer cleanup()
	for i := 0; i < 50; i++ {
		_ = store.Save(createRecord(sessionID(i), 2))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.List("/data/run/ckpt.tar")
	}
}

// Helper functions

func sessionID(i int) string {
	return fmt.Sprintf("session-%d", i)
}

func createRecord(id string, failures int) history.Record {
	start := time.Now()
	rec := history.Record{
		SessionID:   id,
		ArchivePath: "/data/run/ckpt.tar",
		Mode:        "append",
		StartedAt:   start,
		ClosedAt:    start.Add(3 * time.Second),
		Tasks:       100,
		Entries:     200 - failures,
		Bytes:       1 << 30,
	}
	for i := 0; i < failures; i++ {
		rec.Failures = append(rec.Failures, history.Failure{
			Index:  i,
			Path:   fmt.Sprintf("/data/run/out/%d/model.bin", i),
			Reason: "no such file or directory",
		})
	}
	return rec
}

func createSQLiteStore(b *testing.B) (*history.SQLiteStore, func()) {
	b.Helper()
	tmpFile, err := os.CreateTemp("", "bench-*.db")
	if err != nil {
		b.Fatal(err)
	}
	tmpFile.Close()

	store, err := history.NewSQLiteStore(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		b.Fatal(err)
	}

	return store, func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}
}
