package tarckpt

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/observability"
)

// TempDirEnv names the environment variable holding the root directory for
// extractions made without WithDestination. When unset, os.TempDir is used.
const TempDirEnv = "TARCKPT_TMPDIR"

type extractConfig struct {
	dest   string
	logger *slog.Logger
	spans  observability.SpanManager
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// WithDestination extracts under dir instead of a fresh temporary
// directory. dir is created if needed.
func WithDestination(dir string) ExtractOption {
	return func(c *extractConfig) {
		c.dest = dir
	}
}

// WithExtractLogger enables structured logging for Extract.
func WithExtractLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

// WithExtractTracing enables an OpenTelemetry span around Extract.
func WithExtractTracing() ExtractOption {
	return func(c *extractConfig) {
		c.spans = observability.NewSpanManager()
	}
}

// EntryInfo describes one checkpoint entry in an archive.
type EntryInfo struct {
	// Name is the entry name in the archive, e.g. "12/model.bin-2".
	Name  string
	Index int
	// Basename is the source file's name before any collision suffix.
	Basename  string
	Size      int64
	Mode      fs.FileMode
	ModTime   time.Time
	SessionID string
}

// Extract copies every file of checkpoint index out of the archive and
// returns the directory holding them, "<dest>/<index>".
//
// The archive is scanned from the start; entries named with a padded or
// unpadded index both match; when two of them name the same file, the later
// one is written with a "-2", "-3", ... suffix. Existing files are never
// overwritten. If no
// entry matches, Extract returns *IndexNotFoundError and leaves nothing
// behind. An archive still being written yields *ArchiveBusyError.
func Extract(ctx context.Context, archivePath string, index int, opts ...ExtractOption) (dir string, err error) {
	cfg := extractConfig{spans: observability.NoopSpanManager{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := cfg.spans.StartExtractSpan(ctx, archivePath, index)
	defer func() { cfg.spans.EndSpanWithError(span, err) }()

	f, err := openForRead(archivePath)
	if err != nil {
		return "", err
	}
	defer closeRead(f)

	root := cfg.dest
	tempRoot := root == ""
	if tempRoot {
		root, err = os.MkdirTemp(os.Getenv(TempDirEnv), "tarckpt-")
	} else {
		err = os.MkdirAll(root, 0o755)
	}
	if err != nil {
		return "", fmt.Errorf("prepare extraction directory: %w", err)
	}

	target := filepath.Join(root, strconv.Itoa(index))
	_, statErr := os.Stat(target)
	targetExisted := statErr == nil

	var created []string
	defer func() {
		if err == nil {
			return
		}
		switch {
		case tempRoot:
			_ = os.RemoveAll(root)
		case !targetExisted:
			_ = os.RemoveAll(target)
		default:
			for _, p := range created {
				_ = os.Remove(p)
			}
		}
	}()

	_, err = scanArchive(ctx, f, func(hdr *tar.Header, tr *tar.Reader, _ int64) error {
		idx, rest, ok := ParseEntryName(hdr.Name)
		if !ok || idx != index || hdr.Typeflag != tar.TypeReg {
			return nil
		}
		if !filepath.IsLocal(filepath.FromSlash(rest)) {
			return fmt.Errorf("%w: %q", ErrUnsafeEntry, hdr.Name)
		}
		out := filepath.Join(target, filepath.FromSlash(rest))
		// Padded and unpadded names of one index can map to the same
		// file; later ones take the next free suffix.
		for n := 2; slices.Contains(created, out); n++ {
			out = filepath.Join(target, filepath.FromSlash(rest)) + "-" + strconv.Itoa(n)
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := writeExtracted(out, hdr, tr); err != nil {
			return err
		}
		created = append(created, out)
		return nil
	})
	if err != nil {
		return "", &PathError{Op: "extract", Path: archivePath, Err: err}
	}
	if len(created) == 0 {
		err = &IndexNotFoundError{Path: archivePath, Index: index}
		return "", err
	}

	observability.LogExtract(cfg.logger, archivePath, index, len(created), target)
	return target, nil
}

// writeExtracted creates out exclusively and restores the entry's
// permission bits and modification time.
func writeExtracted(out string, hdr *tar.Header, r io.Reader) error {
	perm := hdr.FileInfo().Mode().Perm()
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("extract %s: %w", hdr.Name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(out, perm); err != nil {
		return err
	}
	atime := hdr.AccessTime
	if atime.IsZero() {
		atime = hdr.ModTime
	}
	return os.Chtimes(out, atime, hdr.ModTime)
}

// ListIndices returns the sorted set of checkpoint indices in the archive.
func ListIndices(ctx context.Context, archivePath string) ([]int, error) {
	entries, err := Entries(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(entries))
	for _, e := range entries {
		indices = append(indices, e.Index)
	}
	slices.Sort(indices)
	return slices.Compact(indices), nil
}

// Entries lists the checkpoint entries of an archive in archive order.
// Entries that are not regular files named "<index>/<name>" are skipped.
func Entries(ctx context.Context, archivePath string) ([]EntryInfo, error) {
	f, err := openForRead(archivePath)
	if err != nil {
		return nil, err
	}
	defer closeRead(f)

	var entries []EntryInfo
	_, err = scanArchive(ctx, f, func(hdr *tar.Header, _ *tar.Reader, _ int64) error {
		idx, rest, ok := ParseEntryName(hdr.Name)
		if !ok || hdr.Typeflag != tar.TypeReg {
			return nil
		}
		base := hdr.PAXRecords[paxBasename]
		if base == "" {
			base = path.Base(rest)
		}
		entries = append(entries, EntryInfo{
			Name:      hdr.Name,
			Index:     idx,
			Basename:  base,
			Size:      hdr.Size,
			Mode:      hdr.FileInfo().Mode(),
			ModTime:   hdr.ModTime,
			SessionID: hdr.PAXRecords[paxSession],
		})
		return nil
	})
	if err != nil {
		return nil, &PathError{Op: "read", Path: archivePath, Err: err}
	}
	return entries, nil
}

// openForRead opens an archive under a shared lock, failing fast if a
// session is writing it.
func openForRead(archivePath string) (*os.File, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, &PathError{Op: "read", Path: archivePath, Err: err}
	}
	if err := lockFile(f, false); err != nil {
		f.Close()
		if errors.Is(err, errLocked) {
			return nil, &ArchiveBusyError{Path: archivePath}
		}
		return nil, &PathError{Op: "lock", Path: archivePath, Err: err}
	}
	return f, nil
}

func closeRead(f *os.File) {
	_ = unlockFile(f)
	_ = f.Close()
}
