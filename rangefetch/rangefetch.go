// Package rangefetch implements the range-fetch abstraction (component C1):
// it turns an HTTP URL plus optional authentication hints into a seekable
// byte source backed by HEAD and ranged GET requests.
//
// The shape is adapted from s3readseeker.ReadSeeker (which does the same
// thing against S3's HeadObject/GetObject), swapping the S3 SDK client for
// a plain *http.Client and Range headers.
package rangefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/valyala/bytebufferpool"
)

// impersonatedUserAgent is sent verbatim when Options.ImpersonateUA is set.
const impersonatedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/122 Safari/537.36"

// DefaultRequestTimeout bounds each individual HEAD/GET when
// Options.RequestTimeout is left at its zero value.
const DefaultRequestTimeout = 30 * time.Second

// Options customises a Source.
type Options struct {
	// Cookies, if non-empty, is sent as a single Cookie header on every
	// request.
	Cookies string

	// ImpersonateUA sends impersonatedUserAgent as the User-Agent header
	// on every request when true.
	ImpersonateUA bool

	// HTTPClient is the client used for every HEAD/GET. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// RequestTimeout bounds each individual HEAD/GET, layered on top of
	// whatever deadline the caller's context already carries. Defaults
	// to DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Source is an immutable-for-the-life-of-one-request handle to a remote
// ZIP archive: a URL plus auth hints plus a shared HTTP client. The total
// size is discovered lazily on first Probe and cached for the life of the
// Source.
type Source struct {
	URL string

	opts Options

	mu   sync.Mutex
	size int64
	have bool
}

// New creates a Source for the given URL.
func New(url string, optFns ...func(*Options)) *Source {
	opts := Options{
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	return &Source{URL: url, opts: opts}
}

func (s *Source) applyHeaders(req *http.Request) {
	if s.opts.ImpersonateUA {
		req.Header.Set("User-Agent", impersonatedUserAgent)
	}
	if s.opts.Cookies != "" {
		req.Header.Set("Cookie", s.opts.Cookies)
	}
}

// Probe issues a HEAD request (redirects followed) to determine the
// archive's total size, caching the result on the Source. Subsequent calls
// return the cached value without another round trip.
func (s *Source) Probe(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.have {
		return s.size, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL, nil)
	if err != nil {
		return 0, apierr.Wrap(apierr.BadRequest, err, "build HEAD request")
	}
	s.applyHeaders(req)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, apierr.Wrap(apierr.UpstreamStatus, err, "HEAD request failed")
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body), resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, apierr.Newf(apierr.UpstreamStatus, "HEAD request failed with status %d", resp.StatusCode)
	}

	cl := resp.Header.Get("Content-Length")
	size, err := strconv.ParseInt(cl, 10, 64)
	if cl == "" || err != nil || size <= 0 {
		return 0, apierr.New(apierr.MissingContentLength, "Content-Length not provided or zero")
	}

	s.size, s.have = size, true
	return size, nil
}

// FetchRange issues one ranged GET covering [start, endInclusive] and
// returns that slice of bytes. A body that ends before endInclusive yields
// a shorter slice; callers check the length they got.
//
// The server may answer 200 (ignoring the range, returning the whole body)
// or 206 (honoring it). Both are accepted: a 206 body is trusted to begin
// at start, a 200 body is trusted to begin at 0 and is sliced accordingly.
func (s *Source) FetchRange(ctx context.Context, start, endInclusive int64) ([]byte, error) {
	if endInclusive < start {
		return nil, apierr.Newf(apierr.Internal, "invalid range [%d, %d]", start, endInclusive)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.BadRequest, err, "build GET request")
	}
	s.applyHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, endInclusive))

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamStatus, err, "ranged GET failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	default:
		return nil, apierr.Newf(apierr.UpstreamStatus, "ranged GET failed with status %d", resp.StatusCode)
	}

	want := endInclusive - start + 1

	// a 200 body starts at offset 0, so it must be read up to the end of
	// the requested range, not just want bytes.
	limit := want + 1
	if resp.StatusCode == http.StatusOK {
		limit = start + want
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	if _, err := bb.ReadFrom(io.LimitReader(resp.Body, limit)); err != nil {
		return nil, apierr.Wrap(apierr.UpstreamStatus, err, "read ranged response body")
	}

	if resp.StatusCode == http.StatusOK {
		// server ignored the range: the body starts at offset 0 of the
		// archive, so slice out [start, endInclusive] ourselves.
		if start >= int64(bb.Len()) {
			return nil, apierr.Newf(apierr.UpstreamStatus, "full body shorter (%d bytes) than requested range start %d", bb.Len(), start)
		}
		end := start + want
		if end > int64(bb.Len()) {
			end = int64(bb.Len())
		}
		return append([]byte(nil), bb.B[start:end]...), nil
	}

	data := bb.B
	if int64(len(data)) > want {
		data = data[:want]
	}
	return append([]byte(nil), data...), nil
}
