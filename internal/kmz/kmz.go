// Package kmz wraps a KML document into a single-entry KMZ (zip) archive.
package kmz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DefaultEntryName is the entry globe viewers look for inside a KMZ.
const DefaultEntryName = "doc.kml"

// chunkSize bounds how much markup is written between cancellation checks.
const chunkSize = 64 << 10

// TruncatedArchiveError means the archive was not finalized. The partial bytes
// must never be served.
type TruncatedArchiveError struct {
	Entry string
	Err   error
}

func (e *TruncatedArchiveError) Error() string {
	return fmt.Sprintf("kmz archive %q not finalized: %v", e.Entry, e.Err)
}

func (e *TruncatedArchiveError) Unwrap() error {
	return e.Err
}

// Pack compresses markup into an in-memory KMZ holding one entry. An empty
// entryName means doc.kml. The returned bytes are only non-nil when the
// central directory was written.
func Pack(ctx context.Context, markup []byte, entryName string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(markup) / 4)
	if err := Encode(ctx, &buf, markup, entryName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the archive to w. Any failure, including ctx ending before the
// archive is closed, is reported as *TruncatedArchiveError.
func Encode(ctx context.Context, w io.Writer, markup []byte, entryName string) error {
	if entryName == "" {
		entryName = DefaultEntryName
	}
	truncated := func(err error) error {
		return &TruncatedArchiveError{Entry: entryName, Err: err}
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	header := &zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return truncated(fmt.Errorf("create entry: %w", err))
	}

	for off := 0; off < len(markup); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return truncated(err)
		}
		end := min(off+chunkSize, len(markup))
		if _, err := entry.Write(markup[off:end]); err != nil {
			return truncated(fmt.Errorf("write entry: %w", err))
		}
	}

	if err := ctx.Err(); err != nil {
		return truncated(err)
	}
	if err := zw.Close(); err != nil {
		return truncated(fmt.Errorf("close archive: %w", err))
	}
	return nil
}
