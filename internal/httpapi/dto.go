package httpapi

import "github.com/nguyengg/rangezip/zipcd"

// listFilesRequest is the body of POST /list-files.
type listFilesRequest struct {
	URL     string `json:"url"`
	Cookies string `json:"cookies,omitempty"`
	UseUA   bool   `json:"use_ua,omitempty"`
}

// downloadFilesRequest is the body of POST /download_files.
type downloadFilesRequest struct {
	URL     string `json:"url"`
	Cookies string `json:"cookies,omitempty"`
	UseUA   bool   `json:"use_ua,omitempty"`
	Files   []int  `json:"files"`
}

// fileEntry is one member of a listFilesResponse.
type fileEntry struct {
	Filename          string `json:"filename"`
	CompressType      uint16 `json:"compress_type"`
	CompressedSize    uint32 `json:"compressed_size"`
	UncompressedSize  uint32 `json:"uncompressed_size"`
	LocalHeaderOffset uint32 `json:"local_header_offset"`
	Encrypted         bool   `json:"encrypted"`
}

func toFileEntry(m zipcd.Member) fileEntry {
	return fileEntry{
		Filename:          m.FileName,
		CompressType:      m.CompressMethod,
		CompressedSize:    m.CompressedSize,
		UncompressedSize:  m.UncompressedSize,
		LocalHeaderOffset: m.LocalHeaderOffset,
		Encrypted:         m.Encrypted(),
	}
}

// listFilesResponse is the success body of POST /list-files.
type listFilesResponse struct {
	Status string      `json:"status"`
	Files  []fileEntry `json:"files"`
}

// errorResponse is the body returned for every 4xx/5xx response.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
