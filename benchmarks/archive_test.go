package benchmarks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt"
)

// BenchmarkSubmit measures caller-side latency of Submit with a queue deep
// enough that it never blocks.
func BenchmarkSubmit(b *testing.B) {
	dir := b.TempDir()
	src := createSource(b, dir, "model.bin", 4<<10)
	ctx := context.Background()

	s, err := tarckpt.Open(ctx, filepath.Join(dir, "ckpt.tar"), tarckpt.WithQueueSize(b.N+1))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Submit(ctx, i, src)
	}
	b.StopTimer()
	_ = s.Close()
}

// BenchmarkArchive_1MB measures end-to-end throughput: submit and drain.
func BenchmarkArchive_1MB(b *testing.B) {
	benchmarkArchive(b, 1<<20, false)
}

// BenchmarkArchive_1MB_Sync adds an fsync per task.
func BenchmarkArchive_1MB_Sync(b *testing.B) {
	benchmarkArchive(b, 1<<20, true)
}

func benchmarkArchive(b *testing.B, size int, sync bool) {
	dir := b.TempDir()
	src := createSource(b, dir, "model.bin", size)
	ctx := context.Background()

	s, err := tarckpt.Open(ctx, filepath.Join(dir, "ckpt.tar"), tarckpt.WithSync(sync))
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Submit(ctx, i, src)
	}
	if err := s.Close(); err != nil {
		b.Fatal(err)
	}
}

// BenchmarkExtract_Last measures the linear scan to the final checkpoint of
// a 100-entry archive.
func BenchmarkExtract_Last(b *testing.B) {
	dir := b.TempDir()
	src := createSource(b, dir, "model.bin", 64<<10)
	archive := filepath.Join(dir, "ckpt.tar")
	ctx := context.Background()

	s, err := tarckpt.Open(ctx, archive)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		_ = s.Submit(ctx, i, src)
	}
	if err := s.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dest := filepath.Join(dir, fmt.Sprintf("out-%d", i))
		if _, err := tarckpt.Extract(ctx, archive, 99, tarckpt.WithDestination(dest)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkListIndices measures a header-only scan.
func BenchmarkListIndices(b *testing.B) {
	dir := b.TempDir()
	src := createSource(b, dir, "model.bin", 64<<10)
	archive := filepath.Join(dir, "ckpt.tar")
	ctx := context.Background()

	s, err := tarckpt.Open(ctx, archive)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		_ = s.Submit(ctx, i, src)
	}
	if err := s.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tarckpt.ListIndices(ctx, archive)
	}
}

func createSource(b *testing.B, dir, name string, size int) string {
	b.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
		b.Fatal(err)
	}
	return p
}
