// Package zipout implements component C5: assembling a new output ZIP
// from already-fetched member payloads, writing each member's compressed
// bytes through unchanged (method, CRC-32, sizes and general-purpose flag
// all preserved verbatim).
//
// Writer wraps the standard archive/zip.Writer the same way zipWriter does
// in the teacher, but writes via CreateRaw instead of CreateHeader/Write:
// the whole point of this service is never to re-derive compressed bytes,
// only to pass through whatever the upstream archive already contains,
// which is what makes CreateRaw (not the teacher's Deflate-recompressing
// add) the right primitive here.
package zipout

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nguyengg/rangezip/extract"
	"github.com/nguyengg/rangezip/zipcd"
)

// Skip records a member that was requested but could not be included in
// the output archive.
type Skip struct {
	Member zipcd.Member
	Reason error
}

// Writer assembles an output ZIP from extract.IndexedResult values,
// restoring the caller's original selection order regardless of the order
// results complete in.
type Writer struct {
	zw *zip.Writer
}

// NewWriter creates a Writer that streams a ZIP archive to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(dst)}
}

// WriteAll drains results (as produced by extract.Stream), writing each
// successfully-fetched member to the output archive in original selection
// order, and returns every member that had to be skipped along with the
// reason. WriteAll does not close the underlying writer; call Close
// afterward.
func (w *Writer) WriteAll(ctx context.Context, results <-chan extract.IndexedResult, total int) ([]Skip, error) {
	pending := make(map[int]extract.IndexedResult, total)
	next := 0
	var skipped []Skip

	flush := func() error {
		for r, ok := pending[next]; ok; r, ok = pending[next] {
			delete(pending, next)
			next++

			if r.Result.Err != nil {
				skipped = append(skipped, Skip{Member: r.Result.Member, Reason: r.Result.Err})
				continue
			}
			if err := w.writeMember(r.Result.Member, r.Result.Data); err != nil {
				return err
			}
		}
		return nil
	}

	for count := 0; count < total; count++ {
		select {
		case r, ok := <-results:
			if !ok {
				// channel closed early (context cancellation upstream);
				// treat remaining members as not yet delivered.
				return skipped, ctx.Err()
			}
			pending[r.Index] = r
			if err := flush(); err != nil {
				return skipped, err
			}
		case <-ctx.Done():
			return skipped, ctx.Err()
		}
	}

	return skipped, nil
}

// writeMember appends one member's already-fetched compressed payload to
// the output archive, preserving its method, sizes, CRC-32 and
// general-purpose flag exactly as read from the source archive.
func (w *Writer) writeMember(m zipcd.Member, data []byte) error {
	fh := &zip.FileHeader{
		Name:               m.FileName,
		Comment:            m.Comment,
		Extra:              m.Extra,
		Method:             m.CompressMethod,
		Flags:              m.GPFlag,
		CRC32:              m.CRC32,
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(m.UncompressedSize),
		Modified:           msDosTimeToTime(m.ModDate, m.ModTime),
	}

	fw, err := w.zw.CreateRaw(fh)
	if err != nil {
		return fmt.Errorf("create raw zip entry %q: %w", m.FileName, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write raw zip entry %q: %w", m.FileName, err)
	}
	return nil
}

// Close finalises the output archive's central directory.
func (w *Writer) Close() error {
	return w.zw.Close()
}

// msDosTimeToTime converts MS-DOS date/time fields (as stored in a ZIP
// local/central header) to a time.Time, grounded on the identical helper
// in z/cd.go.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}
