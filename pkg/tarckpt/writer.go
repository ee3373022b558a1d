package tarckpt

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	ckerrors "github.com/fcossio/tar-checkpoints/pkg/tarckpt/errors"
)

// archiveWriter appends entries to one tar file. Only the session worker
// calls into it. Every entry is either fully committed or rolled back, so the
// file always ends on an entry boundary once finalize or abort has run.
type archiveWriter struct {
	path      string
	f         *os.File
	tw        *tar.Writer
	names     *nameRegistry
	width     int
	sessionID string
	created   bool

	// committed is the offset just past the last complete entry.
	committed int64
	// broken is set when a rollback itself failed; no further writes are
	// attempted.
	broken error
	closed bool
}

// openArchive validates the location, opens the file according to mode, and
// takes the session lock. The file is never truncated before the lock is
// held, so a live session's archive cannot be clobbered.
func openArchive(ctx context.Context, path string, mode Mode, width int, sessionID string) (*archiveWriter, error) {
	dir := filepath.Dir(path)
	st, err := os.Stat(dir)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}
	if !st.IsDir() {
		return nil, &PathError{Op: "open", Path: path, Err: fmt.Errorf("parent %s is not a directory", dir)}
	}
	if err := dirWritable(dir); err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: fmt.Errorf("parent %s not writable: %w", dir, err)}
	}

	flags := os.O_RDWR | os.O_CREATE
	switch mode {
	case ModeCreateExclusive:
		flags |= os.O_EXCL
	case ModeTruncate, ModeAppend:
	default:
		return nil, &PathError{Op: "open", Path: path, Err: fmt.Errorf("unknown mode %v", mode)}
	}

	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}
	if st, err := f.Stat(); err != nil || !st.Mode().IsRegular() {
		f.Close()
		if err == nil {
			err = errors.New("not a regular file")
		}
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}

	if err := lockFile(f, true); err != nil {
		f.Close()
		if errors.Is(err, errLocked) {
			return nil, &ArchiveBusyError{Path: path}
		}
		return nil, &PathError{Op: "lock", Path: path, Err: err}
	}

	w := &archiveWriter{
		path:      path,
		f:         f,
		names:     newNameRegistry(),
		width:     width,
		sessionID: sessionID,
		created:   created,
	}

	switch mode {
	case ModeTruncate:
		err = f.Truncate(0)
	case ModeAppend:
		err = w.seekEnd(ctx)
	}
	if err == nil {
		_, err = f.Seek(w.committed, io.SeekStart)
	}
	if err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, &PathError{Op: mode.String(), Path: path, Err: err}
	}

	w.tw = tar.NewWriter(f)
	return w, nil
}

// seekEnd scans an existing archive, registers its entry names, and cuts off
// the trailer so new entries follow the last existing one. A tail left by
// a crashed writer (a partial entry) is discarded too.
func (w *archiveWriter) seekEnd(ctx context.Context) error {
	end, err := scanArchive(ctx, w.f, func(hdr *tar.Header, _ *tar.Reader, _ int64) error {
		w.names.mark(hdr.Name)
		return nil
	})
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("scan existing archive: %w", err)
	}
	if err := w.f.Truncate(end); err != nil {
		return fmt.Errorf("truncate trailer: %w", err)
	}
	w.committed = end
	return nil
}

// writeEntry copies one source file into the archive under the next free
// name for index. On failure the archive is rolled back to the previous
// entry and entry is the name that was tried, or "" if none was assigned.
func (w *archiveWriter) writeEntry(ctx context.Context, index int, source string, retry ckerrors.RetryConfig) (entry string, size int64, err error) {
	if w.closed {
		return "", 0, errors.New("archive already finalized")
	}
	if w.broken != nil {
		return "", 0, fmt.Errorf("archive unusable after failed rollback: %w", w.broken)
	}

	opened := ckerrors.WithRetry(ctx, retry, func(context.Context) (*os.File, error) {
		return os.Open(source)
	})
	if opened.Err != nil {
		return "", 0, opened.Err
	}
	src := opened.Value
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return "", 0, err
	}
	if !fi.Mode().IsRegular() {
		return "", 0, fmt.Errorf("%s is not a regular file", source)
	}

	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return "", 0, err
	}
	entry = w.names.reserve(EntryName(index, source, w.width))
	hdr.Name = entry
	hdr.Format = tar.FormatPAX
	hdr.PAXRecords = map[string]string{
		paxIndex:    strconv.Itoa(index),
		paxBasename: filepath.Base(source),
		paxSession:  w.sessionID,
	}

	if err := w.copyEntry(hdr, src); err != nil {
		w.names.release(entry)
		w.rollback()
		return entry, 0, err
	}

	pos, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		w.names.release(entry)
		w.rollback()
		return entry, 0, fmt.Errorf("locate entry end: %w", err)
	}
	w.committed = pos
	return entry, hdr.Size, nil
}

// copyEntry writes exactly hdr.Size bytes. A source that shrank since it was
// stat'ed fails with io.ErrUnexpectedEOF; growth past that size is ignored.
func (w *archiveWriter) copyEntry(hdr *tar.Header, src io.Reader) error {
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	n, err := io.CopyN(w.tw, src, hdr.Size)
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("source shrank to %d of %d bytes: %w", n, hdr.Size, io.ErrUnexpectedEOF)
	}
	if err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	if err := w.tw.Flush(); err != nil {
		return fmt.Errorf("pad entry: %w", err)
	}
	return nil
}

// rollback discards anything written past the last committed entry.
func (w *archiveWriter) rollback() {
	if err := w.f.Truncate(w.committed); err != nil {
		w.broken = err
		return
	}
	if _, err := w.f.Seek(w.committed, io.SeekStart); err != nil {
		w.broken = err
		return
	}
	w.tw = tar.NewWriter(w.f)
}

func (w *archiveWriter) sync() error {
	return w.f.Sync()
}

// finalize writes the end-of-archive marker, syncs, unlocks and closes.
// It is safe to call more than once.
func (w *archiveWriter) finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.broken != nil {
		// Best effort: another truncate may succeed where the first did not.
		if err := w.f.Truncate(w.committed); err == nil {
			_, err = w.f.Seek(w.committed, io.SeekStart)
			if err == nil {
				w.tw = tar.NewWriter(w.f)
			}
		}
	}
	if err := w.tw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("write trailer: %w", err))
	}
	if err := w.f.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync archive: %w", err))
	}
	if w.created {
		if err := syncDir(filepath.Dir(w.path)); err != nil {
			errs = append(errs, fmt.Errorf("sync directory: %w", err))
		}
	}
	if err := unlockFile(w.f); err != nil {
		errs = append(errs, fmt.Errorf("unlock archive: %w", err))
	}
	if err := w.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close archive: %w", err))
	}
	return errors.Join(errs...)
}

// abort rolls back any partial entry and finalizes, leaving an archive that
// holds exactly the committed entries.
func (w *archiveWriter) abort() error {
	if w.closed {
		return nil
	}
	w.rollback()
	return w.finalize()
}
