package zipcd

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/rangefetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildEOCD returns a bare 22-byte EOCD record with no trailing comment.
func buildEOCD(entries uint16, cdSize, cdOffset uint32) []byte {
	b := make([]byte, eocdFixedSize)
	binary.LittleEndian.PutUint32(b[0:4], sigEOCD)
	binary.LittleEndian.PutUint16(b[8:10], entries)
	binary.LittleEndian.PutUint16(b[10:12], entries)
	binary.LittleEndian.PutUint32(b[12:16], cdSize)
	binary.LittleEndian.PutUint32(b[16:20], cdOffset)
	return b
}

func serveRanged(t *testing.T, content []byte) (*httptest.Server, *rangefetch.Source) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			return
		}

		start, end := int64(0), int64(len(content))-1
		if rng := r.Header.Get("Range"); rng != "" {
			start, end = parseByteRange(rng)
			if end >= int64(len(content)) {
				end = int64(len(content)) - 1
			}
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(content[start : end+1])
	}))
	return srv, rangefetch.New(srv.URL)
}

// parseByteRange parses a "bytes=A-B" Range header value.
func parseByteRange(s string) (start, end int64) {
	s = strings.TrimPrefix(s, "bytes=")
	parts := strings.SplitN(s, "-", 2)
	start, _ = strconv.ParseInt(parts[0], 10, 64)
	if len(parts) == 2 && parts[1] != "" {
		end, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	return start, end
}

func TestFindEOCD_NoComment(t *testing.T) {
	eocd := buildEOCD(3, 200, 1000)
	content := append(make([]byte, 1200), eocd...)

	srv, src := serveRanged(t, content)
	defer srv.Close()

	got, err := findEOCD(context.Background(), src, int64(len(content)))
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.EntriesTotal)
	assert.EqualValues(t, 200, got.CDSize)
	assert.EqualValues(t, 1000, got.CDOffset)
}

func TestFindEOCD_WithMaxComment(t *testing.T) {
	// comment_len is a u16, so 65535 (not the window constant
	// maxEOCDCommentLen, which is one larger) is the true largest legal
	// comment.
	const commentLen = 65535

	eocd := buildEOCD(1, 46, 0)
	binary.LittleEndian.PutUint16(eocd[20:22], commentLen)
	comment := bytes.Repeat([]byte("c"), commentLen)

	content := append(make([]byte, 100), eocd...)
	content = append(content, comment...)

	srv, src := serveRanged(t, content)
	defer srv.Close()

	got, err := findEOCD(context.Background(), src, int64(len(content)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.EntriesTotal)
}

func TestFindEOCD_NotFound(t *testing.T) {
	content := bytes.Repeat([]byte{0}, 100)
	srv, src := serveRanged(t, content)
	defer srv.Close()

	_, err := findEOCD(context.Background(), src, int64(len(content)))
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.EocdNotFound, e.Kind)
}

func TestFindEOCD_Truncated(t *testing.T) {
	// EOCD signature present but fewer than 22 bytes follow it.
	content := append(bytes.Repeat([]byte{0}, 50), sigEOCDBytes...)
	content = append(content, 0, 0, 0)

	srv, src := serveRanged(t, content)
	defer srv.Close()

	_, err := findEOCD(context.Background(), src, int64(len(content)))
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.EocdTruncated, e.Kind)
}

func TestFindEOCD_MultiDiskRejected(t *testing.T) {
	eocd := buildEOCD(1, 46, 0)
	binary.LittleEndian.PutUint16(eocd[4:6], 1)
	content := append(make([]byte, 50), eocd...)

	srv, src := serveRanged(t, content)
	defer srv.Close()

	_, err := findEOCD(context.Background(), src, int64(len(content)))
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Unsupported, e.Kind)
}

func TestFindEOCD_Zip64SentinelRejected(t *testing.T) {
	eocd := buildEOCD(1, sentinelZip64, 0)
	content := append(make([]byte, 50), eocd...)

	srv, src := serveRanged(t, content)
	defer srv.Close()

	_, err := findEOCD(context.Background(), src, int64(len(content)))
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.Unsupported, e.Kind)
}
