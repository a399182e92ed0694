package zipcd

import (
	"context"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/rangefetch"
)

// Load performs the full C1+C2 flow for one request: probe the archive
// size, locate and parse the EOCD, fetch the Central Directory in one
// ranged GET, and parse every member record.
func Load(ctx context.Context, src *rangefetch.Source) (*Archive, error) {
	totalSize, err := src.Probe(ctx)
	if err != nil {
		return nil, err
	}

	eocd, err := findEOCD(ctx, src, totalSize)
	if err != nil {
		return nil, err
	}

	cdSize := int64(eocd.CDSize)
	cdOffset := int64(eocd.CDOffset)

	var cdData []byte
	if cdSize > 0 {
		cdData, err = src.FetchRange(ctx, cdOffset, cdOffset+cdSize-1)
		if err != nil {
			return nil, err
		}
		if int64(len(cdData)) != cdSize {
			return nil, apierr.Newf(apierr.CdSizeMismatch, "central directory GET returned %d bytes, expected %d", len(cdData), cdSize)
		}
	}

	members, err := parseCentralDirectory(cdData, int(eocd.EntriesTotal))
	if err != nil {
		return nil, err
	}

	for _, m := range members {
		if int64(m.LocalHeaderOffset) >= totalSize {
			return nil, apierr.Newf(apierr.CdCorrupt, "member %q: local header offset %d is past end of archive (%d bytes)", m.FileName, m.LocalHeaderOffset, totalSize)
		}
	}

	return &Archive{TotalSize: totalSize, EOCD: eocd, Members: members}, nil
}

// parseCentralDirectory walks exactly cdSize bytes of Central Directory
// data, per spec §4.2. Any leftover bytes or early termination is
// CdCorrupt; a record count mismatch against expectedCount is also
// CdCorrupt (spec §3 invariant 5).
func parseCentralDirectory(data []byte, expectedCount int) ([]Member, error) {
	members := make([]Member, 0, expectedCount)

	pos := 0
	for pos < len(data) {
		if pos+cdfhFixedSize > len(data) {
			return nil, apierr.New(apierr.CdCorrupt, "truncated central directory file header")
		}

		rec := data[pos : pos+cdfhFixedSize]
		if binary.LittleEndian.Uint32(rec[0:4]) != sigCDFH {
			return nil, apierr.Newf(apierr.CdCorrupt, "invalid central directory file header signature at offset %d", pos)
		}

		gpFlag := binary.LittleEndian.Uint16(rec[8:10])
		nameLen := int(binary.LittleEndian.Uint16(rec[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(rec[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(rec[32:34]))

		nameStart := pos + cdfhFixedSize
		extraStart := nameStart + nameLen
		commentStart := extraStart + extraLen
		commentEnd := commentStart + commentLen
		if commentEnd > len(data) {
			return nil, apierr.New(apierr.CdCorrupt, "truncated variable-length central directory fields")
		}

		m := Member{
			Index:             len(members),
			FileName:          decodeName(data[nameStart:extraStart]),
			CompressMethod:    binary.LittleEndian.Uint16(rec[10:12]),
			ModTime:           binary.LittleEndian.Uint16(rec[12:14]),
			ModDate:           binary.LittleEndian.Uint16(rec[14:16]),
			CRC32:             binary.LittleEndian.Uint32(rec[16:20]),
			CompressedSize:    binary.LittleEndian.Uint32(rec[20:24]),
			UncompressedSize:  binary.LittleEndian.Uint32(rec[24:28]),
			GPFlag:            gpFlag,
			LocalHeaderOffset: binary.LittleEndian.Uint32(rec[42:46]),
		}
		if extraLen > 0 {
			m.Extra = append([]byte(nil), data[extraStart:commentStart]...)
		}
		if commentLen > 0 {
			m.Comment = decodeName(data[commentStart:commentEnd])
		}

		members = append(members, m)
		pos = commentEnd
	}

	if pos != len(data) {
		return nil, apierr.New(apierr.CdCorrupt, "central directory parse did not consume exactly cd_size bytes")
	}
	if len(members) != expectedCount {
		return nil, apierr.Newf(apierr.CdCorrupt, "central directory declared %d entries, parsed %d", expectedCount, len(members))
	}

	return members, nil
}

// decodeName decodes raw CD bytes as UTF-8, replacing invalid sequences
// rather than failing, per spec §3.
func decodeName(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// ResolvePayload implements component C3: fetch a member's local file
// header and compute the absolute offset of its compressed payload.
func ResolvePayload(ctx context.Context, src *rangefetch.Source, m Member) (int64, error) {
	off := int64(m.LocalHeaderOffset)

	hdr, err := src.FetchRange(ctx, off, off+lfhFixedSize-1)
	if err != nil {
		return 0, err
	}
	if len(hdr) < lfhFixedSize {
		return 0, apierr.Newf(apierr.LocalHeaderCorrupt, "member %q: short local file header (%d bytes)", m.FileName, len(hdr))
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != sigLFH {
		return 0, apierr.Newf(apierr.LocalHeaderCorrupt, "member %q: invalid local file header signature", m.FileName)
	}

	nameLen := int64(binary.LittleEndian.Uint16(hdr[26:28]))
	extraLen := int64(binary.LittleEndian.Uint16(hdr[28:30]))

	return off + lfhFixedSize + nameLen + extraLen, nil
}
