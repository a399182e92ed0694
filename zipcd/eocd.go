package zipcd

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/rangefetch"
)

const (
	sigEOCD uint32 = 0x06054b50
	sigCDFH uint32 = 0x02014b50
	sigLFH  uint32 = 0x04034b50

	eocdFixedSize = 22
	cdfhFixedSize = 46
	lfhFixedSize  = 30

	// maxEOCDCommentLen is the trailing window's comment allowance, per
	// spec §4.2 (22 + 65536). comment_len is a u16 so the true maximum
	// comment is one byte shorter than this, but the window is sized to
	// the spec's literal constant rather than the tighter bound.
	maxEOCDCommentLen = 65536

	sentinelZip64 uint32 = 0xFFFFFFFF
)

var sigEOCDBytes = func() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, sigEOCD)
	return b
}()

// findEOCD fetches the trailing tail_len = min(22+65536, total_size) bytes
// of the archive and locates the last occurrence of the EOCD signature,
// per spec §4.2.
func findEOCD(ctx context.Context, src *rangefetch.Source, totalSize int64) (EOCD, error) {
	tailLen := eocdFixedSize + maxEOCDCommentLen
	if int64(tailLen) > totalSize {
		tailLen = int(totalSize)
	}

	start := totalSize - int64(tailLen)
	buf, err := src.FetchRange(ctx, start, totalSize-1)
	if err != nil {
		return EOCD{}, err
	}

	idx := bytes.LastIndex(buf, sigEOCDBytes)
	if idx < 0 {
		return EOCD{}, apierr.New(apierr.EocdNotFound, "end of central directory signature not found in trailing window")
	}
	if len(buf)-idx < eocdFixedSize {
		return EOCD{}, apierr.New(apierr.EocdTruncated, "end of central directory record is truncated")
	}

	rec := buf[idx : idx+eocdFixedSize]
	e := EOCD{
		DiskNumber:      binary.LittleEndian.Uint16(rec[4:6]),
		CDStartDisk:     binary.LittleEndian.Uint16(rec[6:8]),
		EntriesThisDisk: binary.LittleEndian.Uint16(rec[8:10]),
		EntriesTotal:    binary.LittleEndian.Uint16(rec[10:12]),
		CDSize:          binary.LittleEndian.Uint32(rec[12:16]),
		CDOffset:        binary.LittleEndian.Uint32(rec[16:20]),
		CommentLen:      binary.LittleEndian.Uint16(rec[20:22]),
	}

	if e.DiskNumber != 0 || e.CDStartDisk != 0 {
		return EOCD{}, apierr.New(apierr.Unsupported, "multi-disk archives are not supported")
	}
	if e.CDSize == sentinelZip64 || e.CDOffset == sentinelZip64 {
		return EOCD{}, apierr.New(apierr.Unsupported, "ZIP64 archives are not supported")
	}

	return e, nil
}
