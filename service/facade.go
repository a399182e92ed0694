// Package service implements component C6: the facade that ties
// rangefetch, zipcd, extract and zipout together into the two operations
// the HTTP layer exposes, listing and selective download.
package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/nguyengg/rangezip/extract"
	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/rangefetch"
	"github.com/nguyengg/rangezip/zipcd"
	"github.com/nguyengg/rangezip/zipcd/cdcache"
	"github.com/nguyengg/rangezip/zipout"
)

// ArchiveRequest identifies the remote archive and how to authenticate to
// it, shared by both List and Download.
type ArchiveRequest struct {
	URL           string
	Cookies       string
	ImpersonateUA bool
}

// ListResult is the outcome of a successful List call.
type ListResult struct {
	Members []zipcd.Member
}

// DownloadRequest selects which members of the archive to re-assemble.
type DownloadRequest struct {
	ArchiveRequest
	Indices []int
}

// DownloadResult reports which selected members were skipped and why; a
// skip is never a failure of the whole request.
type DownloadResult struct {
	Written int
	Skipped []zipout.Skip
}

// ResolvedDownload is a validated download request: the archive has been
// loaded and every selection index checked. Obtained from Resolve, it
// carries no error that a caller still needs to check before starting to
// write to its destination, which is what lets an HTTP handler set its
// response headers only after Resolve succeeds.
type ResolvedDownload struct {
	archive *zipcd.Archive
	src     *rangefetch.Source
	members []zipcd.Member
}

// Facade exposes List and Download over a configured cache and concurrency
// policy. The zero value is usable: caching is off and defaults apply.
type Facade struct {
	// Cache, if non-nil, short-circuits re-parsing the same (URL,
	// Cookies) archive within its TTL. Nil means always re-parse, the
	// spec's default "no server-side state" baseline.
	Cache *cdcache.Cache

	// Concurrency bounds parallel member fetches during Download.
	// Defaults to extract.DefaultConcurrency.
	Concurrency int

	// RequestTimeout bounds every outbound HEAD/GET issued while serving
	// one request. Defaults to 30s.
	RequestTimeout time.Duration

	// HTTPClient is shared by every rangefetch.Source this facade
	// creates. Defaults to http.DefaultClient inside rangefetch.New.
	HTTPClient *http.Client
}

func (f *Facade) source(req ArchiveRequest) *rangefetch.Source {
	return rangefetch.New(req.URL, func(o *rangefetch.Options) {
		o.Cookies = req.Cookies
		o.ImpersonateUA = req.ImpersonateUA
		if f.HTTPClient != nil {
			o.HTTPClient = f.HTTPClient
		}
		if f.RequestTimeout > 0 {
			o.RequestTimeout = f.RequestTimeout
		}
	})
}

func (f *Facade) load(ctx context.Context, req ArchiveRequest) (*zipcd.Archive, *rangefetch.Source, error) {
	if req.URL == "" {
		return nil, nil, apierr.New(apierr.BadRequest, "url is required")
	}

	src := f.source(req)

	archive, err := f.Cache.Load(ctx, src, req.Cookies)
	if err != nil {
		return nil, nil, err
	}
	return archive, src, nil
}

// List fetches and parses the archive's Central Directory and returns
// every member record, in archive order.
func (f *Facade) List(ctx context.Context, req ArchiveRequest) (*ListResult, error) {
	archive, _, err := f.load(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ListResult{Members: archive.Members}, nil
}

// Resolve validates a download request and loads the archive's Central
// Directory, without writing anything to a destination. Callers that need
// to defer committing response headers until they know the request is
// valid (an HTTP handler streaming a ZIP body, say) should call Resolve
// first and only start writing once it succeeds. An empty selection or a
// selection index outside [0, len(members)) is a BadRequest.
func (f *Facade) Resolve(ctx context.Context, req DownloadRequest) (*ResolvedDownload, error) {
	if len(req.Indices) == 0 {
		return nil, apierr.New(apierr.BadRequest, "selection must not be empty")
	}

	archive, src, err := f.load(ctx, req.ArchiveRequest)
	if err != nil {
		return nil, err
	}

	members := make([]zipcd.Member, 0, len(req.Indices))
	for _, i := range req.Indices {
		if i < 0 || i >= len(archive.Members) {
			return nil, apierr.Newf(apierr.BadRequest, "selection index %d is out of range [0, %d)", i, len(archive.Members))
		}
		members = append(members, archive.Members[i])
	}

	return &ResolvedDownload{archive: archive, src: src, members: members}, nil
}

// StreamDownload fetches and re-assembles the members of an already
// Resolved download into dst as a new ZIP archive. Per-member
// fetch/validation failures are recorded in DownloadResult.Skipped instead
// of failing the whole request; once streaming has started, a non-nil
// error here means dst may already hold a partial, unusable archive.
func (f *Facade) StreamDownload(ctx context.Context, r *ResolvedDownload, dst io.Writer) (*DownloadResult, error) {
	concurrency := f.Concurrency
	if concurrency <= 0 {
		concurrency = extract.DefaultConcurrency
	}

	results := extract.Stream(ctx, r.src, r.archive.TotalSize, r.members, func(o *extract.Options) {
		o.Concurrency = concurrency
	})

	w := zipout.NewWriter(dst)
	skipped, err := w.WriteAll(ctx, results, len(r.members))
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, err, "assemble output archive")
	}
	if err := w.Close(); err != nil {
		return nil, apierr.Wrap(apierr.Internal, err, "finalize output archive")
	}

	return &DownloadResult{Written: len(r.members) - len(skipped), Skipped: skipped}, nil
}

// Download resolves req and streams the result into dst in one call. It
// is a convenience for callers (tests, non-HTTP callers) that don't need
// to defer header commitment the way an HTTP handler does; see Resolve
// and StreamDownload for the split version.
func (f *Facade) Download(ctx context.Context, req DownloadRequest, dst io.Writer) (*DownloadResult, error) {
	resolved, err := f.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return f.StreamDownload(ctx, resolved, dst)
}
