// Package zipcd implements component C2 (locating and parsing the ZIP
// End-of-Central-Directory and Central Directory from a ranged HTTP source)
// and component C3 (resolving a member's local file header to find its
// payload offset).
//
// The scan shape — seek/fetch the trailing window, find the last EOCD
// signature, then walk the central directory sequentially — is grounded on
// z.NewCDScanner and z.Scan from the teacher, adapted from a local
// io.ReadSeeker/io.ReaderAt to a rangefetch.Source.
package zipcd

// Member is one parsed Central Directory record (spec data model §3).
type Member struct {
	// Index is this member's position within the archive's central
	// directory; it is the value callers pass back in a download
	// selection.
	Index int

	FileName          string
	CompressMethod    uint16
	CompressedSize    uint32
	UncompressedSize  uint32
	LocalHeaderOffset uint32
	GPFlag            uint16
	CRC32             uint32
	ModTime           uint16
	ModDate           uint16
	Extra             []byte
	Comment           string
}

// Encrypted reports whether bit 0 of GPFlag (traditional ZIP encryption) is
// set.
func (m Member) Encrypted() bool {
	return m.GPFlag&1 != 0
}

// EOCD is the parsed End-of-Central-Directory record (spec §4.2).
type EOCD struct {
	DiskNumber      uint16
	CDStartDisk     uint16
	EntriesThisDisk uint16
	EntriesTotal    uint16
	CDSize          uint32
	CDOffset        uint32
	CommentLen      uint16
}

// Archive is the result of a successful Load: the EOCD, every parsed
// member, and the total archive size discovered via Probe.
type Archive struct {
	TotalSize int64
	EOCD      EOCD
	Members   []Member
}
