package tarckpt

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
)

const blockSize = 512

// countingReader tracks how far tar.Reader has consumed the archive.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// scanFunc is called for each entry in archive order. end is the offset just
// past the entry's padded data. tr is positioned at the entry's data.
type scanFunc func(hdr *tar.Header, tr *tar.Reader, end int64) error

// scanArchive walks every entry of the tar stream in r. It returns the end
// offset of the last complete entry, which is where a new entry may be
// appended. A stream that stops mid-entry yields io.ErrUnexpectedEOF along
// with the end of the last entry that was fully present.
func scanArchive(ctx context.Context, r io.Reader, fn scanFunc) (int64, error) {
	cr := &countingReader{r: r}
	tr := tar.NewReader(cr)

	// pending is the end of the entry most recently handed to fn. It only
	// becomes last once the reader has consumed all of its data.
	var last, pending int64
	for {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		hdr, err := tr.Next()
		if cr.n >= pending {
			last = pending
		}
		if errors.Is(err, io.EOF) {
			return last, nil
		}
		if err != nil {
			return last, fmt.Errorf("read archive header at offset %d: %w", last, err)
		}

		pending = cr.n + paddedSize(dataSize(hdr))
		if fn != nil {
			if err := fn(hdr, tr, pending); err != nil {
				return last, err
			}
		}
	}
}

// dataSize is the number of data bytes stored after hdr. Link, device,
// directory and FIFO entries have none whatever their size field says.
func dataSize(hdr *tar.Header) int64 {
	switch hdr.Typeflag {
	case tar.TypeLink, tar.TypeSymlink, tar.TypeChar, tar.TypeBlock, tar.TypeDir, tar.TypeFifo:
		return 0
	}
	return hdr.Size
}

func paddedSize(n int64) int64 {
	if rem := n % blockSize; rem != 0 {
		return n + blockSize - rem
	}
	return n
}
