package extract

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/rangefetch"
	"github.com/nguyengg/rangezip/zipcd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lfhFixedSize = 30

func buildLFH(name string) []byte {
	b := make([]byte, lfhFixedSize+len(name))
	binary.LittleEndian.PutUint32(b[0:4], 0x04034b50)
	binary.LittleEndian.PutUint16(b[26:28], uint16(len(name)))
	copy(b[30:], name)
	return b
}

func serveRanged(t *testing.T, content []byte) *rangefetch.Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			return
		}
		start, end := int64(0), int64(len(content))-1
		if rng := r.Header.Get("Range"); rng != "" {
			s := strings.TrimPrefix(rng, "bytes=")
			parts := strings.SplitN(s, "-", 2)
			start, _ = strconv.ParseInt(parts[0], 10, 64)
			if len(parts) == 2 && parts[1] != "" {
				end, _ = strconv.ParseInt(parts[1], 10, 64)
			}
		}
		if end >= int64(len(content)) {
			end = int64(len(content)) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(content[start : end+1])
	}))
	t.Cleanup(srv.Close)
	return rangefetch.New(srv.URL)
}

func TestStream_StoredMember(t *testing.T) {
	lfh := buildLFH("a.txt")
	payload := []byte("hello")
	content := append(append([]byte{}, lfh...), payload...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "a.txt",
		CompressMethod:    0,
		CompressedSize:    uint32(len(payload)),
		UncompressedSize:  uint32(len(payload)),
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Result.Err)
	assert.Equal(t, payload, results[0].Result.Data)
}

func TestStream_DeflateMember(t *testing.T) {
	var compressed bytes.Buffer
	fw, _ := flate.NewWriter(&compressed, flate.BestCompression)
	original := bytes.Repeat([]byte("xyz"), 1000)
	_, _ = fw.Write(original)
	_ = fw.Close()

	lfh := buildLFH("b.bin")
	content := append(append([]byte{}, lfh...), compressed.Bytes()...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "b.bin",
		CompressMethod:    8,
		CompressedSize:    uint32(compressed.Len()),
		UncompressedSize:  uint32(len(original)),
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Result.Err)
}

func TestStream_StoredEmptyMember(t *testing.T) {
	lfh := buildLFH("empty.txt")
	content := append([]byte{}, lfh...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "empty.txt",
		CompressMethod:    0,
		CompressedSize:    0,
		UncompressedSize:  0,
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Result.Err)
	assert.Empty(t, results[0].Result.Data)
}

// deflateStored wraps data in a single raw-DEFLATE "stored" block (RFC 1951
// §3.2.4: BFINAL=1, BTYPE=00, byte-aligned, LEN/NLEN, then data verbatim).
// Unlike a Huffman-coded block, this lets the test embed arbitrary bytes —
// here, the central directory file header signature — at a known position
// inside the compressed payload while still producing a stream any DEFLATE
// reader inflates back to data exactly.
func deflateStored(data []byte) []byte {
	n := uint16(len(data))
	nlen := ^n
	out := []byte{0x01, byte(n), byte(n >> 8), byte(nlen), byte(nlen >> 8)}
	return append(out, data...)
}

func TestStream_DeflatePayloadContainingCDSignature(t *testing.T) {
	// PK\x01\x02: the central directory file header signature, embedded
	// as ordinary member data. Locating payloads by the CD's recorded
	// offset and compressed_size (not by scanning for signatures) must
	// not be confused by its presence here.
	original := append([]byte("before-"), 0x50, 0x4B, 0x01, 0x02)
	original = append(original, []byte("-after")...)
	compressed := deflateStored(original)

	lfh := buildLFH("sig.bin")
	content := append(append([]byte{}, lfh...), compressed...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "sig.bin",
		CompressMethod:    8,
		CompressedSize:    uint32(len(compressed)),
		UncompressedSize:  uint32(len(original)),
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Result.Err)
	assert.Equal(t, compressed, results[0].Result.Data)
}

func TestStream_DeflateMismatch(t *testing.T) {
	var compressed bytes.Buffer
	fw, _ := flate.NewWriter(&compressed, flate.BestCompression)
	_, _ = fw.Write([]byte("short"))
	_ = fw.Close()

	lfh := buildLFH("b.bin")
	content := append(append([]byte{}, lfh...), compressed.Bytes()...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "b.bin",
		CompressMethod:    8,
		CompressedSize:    uint32(compressed.Len()),
		UncompressedSize:  9999, // declared size doesn't match actual inflate
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.Error(t, results[0].Result.Err)
	e, ok := apierr.As(results[0].Result.Err)
	require.True(t, ok)
	assert.Equal(t, apierr.DecompressMismatch, e.Kind)
}

func TestStream_EncryptedPassthrough(t *testing.T) {
	lfh := buildLFH("secret.bin")
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	content := append(append([]byte{}, lfh...), payload...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "secret.bin",
		CompressMethod:    0,
		GPFlag:            1,
		CompressedSize:    uint32(len(payload)),
		UncompressedSize:  1, // deliberately wrong; must not be validated
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Result.Err)
	assert.Equal(t, payload, results[0].Result.Data)
}

func TestStream_UnknownMethodPassthrough(t *testing.T) {
	lfh := buildLFH("weird.bin")
	payload := []byte("opaque-bytes")
	content := append(append([]byte{}, lfh...), payload...)

	src := serveRanged(t, content)

	m := zipcd.Member{
		FileName:          "weird.bin",
		CompressMethod:    99,
		CompressedSize:    uint32(len(payload)),
		UncompressedSize:  uint32(len(payload)) + 1234, // intentionally mismatched
		LocalHeaderOffset: 0,
	}

	results := collect(t, src, int64(len(content)), []zipcd.Member{m})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Result.Err)
	assert.Equal(t, payload, results[0].Result.Data)
}

func TestStream_PreservesSelectionOrderViaIndex(t *testing.T) {
	lfh1 := buildLFH("a.txt")
	data1 := []byte("AAAA")
	lfh2 := buildLFH("b.txt")
	data2 := []byte("BBBBBBBB")

	var body bytes.Buffer
	body.Write(lfh1)
	body.Write(data1)
	off2 := int64(body.Len())
	body.Write(lfh2)
	body.Write(data2)

	src := serveRanged(t, body.Bytes())

	members := []zipcd.Member{
		{FileName: "b.txt", CompressedSize: uint32(len(data2)), UncompressedSize: uint32(len(data2)), LocalHeaderOffset: uint32(off2)},
		{FileName: "a.txt", CompressedSize: uint32(len(data1)), UncompressedSize: uint32(len(data1)), LocalHeaderOffset: 0},
	}

	results := collect(t, src, int64(body.Len()), members)
	require.Len(t, results, 2)

	byIndex := map[int][]byte{}
	for _, r := range results {
		require.NoError(t, r.Result.Err)
		byIndex[r.Index] = r.Result.Data
	}
	assert.Equal(t, data2, byIndex[0])
	assert.Equal(t, data1, byIndex[1])
}

func collect(t *testing.T, src *rangefetch.Source, totalSize int64, members []zipcd.Member) []IndexedResult {
	t.Helper()
	ch := Stream(context.Background(), src, totalSize, members)
	var out []IndexedResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}
