// Package extract implements component C4: fetching and validating the
// compressed payload of each selected member, in parallel, tolerating
// per-member failures without aborting the whole download.
//
// The worker pool shape (fixed number of goroutines pulling from an inputs
// channel, writing tagged results to an outputs channel) is grounded on
// downloader.poll/download in the teacher; the difference is that each job
// here is an independent archive member rather than a byte-range slice of
// one object, so ordering is restored downstream by zipout.Writer rather
// than inline in this package.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/rangefetch"
	"github.com/nguyengg/rangezip/zipcd"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the number of goroutines fetching members in
// parallel when Options.Concurrency is left at its zero value.
const DefaultConcurrency = 6

// Options customises Stream.
type Options struct {
	// Concurrency is the number of goroutines fetching members in
	// parallel. Defaults to DefaultConcurrency.
	Concurrency int

	// MaxBytesInSecond rate-limits the total bytes fetched across all
	// workers. Zero means unlimited.
	MaxBytesInSecond int64
}

// Result is the outcome of fetching and validating one member.
type Result struct {
	Member zipcd.Member

	// Data is the member's raw compressed payload, present only when Err
	// is nil.
	Data []byte

	// Err is non-nil when this member could not be fetched or failed
	// validation. Per spec, a per-member failure is reported to the
	// caller as a skip, not a hard failure of the whole download.
	Err error
}

// IndexedResult pairs a Result with its position in the caller's original
// selection so that downstream ordering can be restored regardless of
// completion order.
type IndexedResult struct {
	Index  int
	Result Result
}

// Stream fetches and validates every member in members concurrently and
// returns a channel that yields exactly len(members) IndexedResult values,
// completion order undetermined, before closing; if ctx is done first, the
// channel closes early with fewer values. totalSize is the
// archive's total size (from zipcd.Archive.TotalSize), used to bounds-check
// each member's payload range.
func Stream(ctx context.Context, src *rangefetch.Source, totalSize int64, members []zipcd.Member, optFns ...func(*Options)) <-chan IndexedResult {
	opts := Options{Concurrency: DefaultConcurrency}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.MaxBytesInSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxBytesInSecond), int(opts.MaxBytesInSecond))
	}

	type job struct {
		index  int
		member zipcd.Member
	}

	inputs := make(chan job, opts.Concurrency)
	outputs := make(chan IndexedResult, opts.Concurrency)

	worker := func() {
		for j := range inputs {
			data, err := fetchMember(ctx, src, totalSize, j.member, limiter)
			select {
			case outputs <- IndexedResult{Index: j.index, Result: Result{Member: j.member, Data: data, Err: err}}:
			case <-ctx.Done():
				return
			}
		}
	}

	for i := 0; i < opts.Concurrency; i++ {
		go worker()
	}

	go func() {
		defer close(inputs)
		for i, m := range members {
			select {
			case inputs <- job{index: i, member: m}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make(chan IndexedResult, opts.Concurrency)
	go func() {
		defer close(results)
		for i := 0; i < len(members); i++ {
			select {
			case r := <-outputs:
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// fetchMember resolves a member's payload offset, fetches exactly
// compressed_size bytes, and validates them per spec invariants 2-4.
func fetchMember(ctx context.Context, src *rangefetch.Source, totalSize int64, m zipcd.Member, limiter *rate.Limiter) ([]byte, error) {
	payloadStart, err := zipcd.ResolvePayload(ctx, src, m)
	if err != nil {
		return nil, err
	}

	if size := int64(m.CompressedSize); payloadStart+size > totalSize {
		return nil, apierr.Newf(apierr.LocalHeaderCorrupt, "member %q: payload [%d, %d) extends past end of archive", m.FileName, payloadStart, payloadStart+size)
	}

	// limiter tokens are bytes; a payload larger than the burst waits in
	// burst-sized pieces.
	for remaining := int(m.CompressedSize); remaining > 0; {
		n := remaining
		if limiter.Limit() != rate.Inf && n > limiter.Burst() {
			n = limiter.Burst()
		}
		if err := limiter.WaitN(ctx, n); err != nil {
			return nil, apierr.Wrap(apierr.Internal, err, "rate limiter wait")
		}
		remaining -= n
	}

	if m.CompressedSize == 0 {
		return nil, nil
	}

	data, err := src.FetchRange(ctx, payloadStart, payloadStart+int64(m.CompressedSize)-1)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != m.CompressedSize {
		return nil, apierr.Newf(apierr.LocalHeaderCorrupt, "member %q: fetched %d payload bytes, expected %d", m.FileName, len(data), m.CompressedSize)
	}

	if m.Encrypted() {
		// traditional ZIP encryption: the payload cannot be decompressed
		// without the password, so it is passed through untouched and
		// unvalidated (spec open question 3).
		return data, nil
	}

	switch m.CompressMethod {
	case 0: // stored
		if uint32(len(data)) != m.UncompressedSize {
			return nil, apierr.Newf(apierr.PayloadSizeMismatch, "member %q: stored payload is %d bytes, declared uncompressed size is %d", m.FileName, len(data), m.UncompressedSize)
		}
	case 8: // deflate
		fr := flate.NewReader(bytes.NewReader(data))
		n, err := io.Copy(io.Discard, fr)
		_ = fr.Close()
		if err != nil {
			return nil, apierr.Wrap(apierr.DecompressMismatch, err, fmt.Sprintf("member %q: failed to inflate", m.FileName))
		}
		if uint64(n) != uint64(m.UncompressedSize) {
			return nil, apierr.Newf(apierr.DecompressMismatch, "member %q: inflated to %d bytes, declared uncompressed size is %d", m.FileName, n, m.UncompressedSize)
		}
	default:
		// unknown compression method: passed through untouched, per spec
		// open question 2.
	}

	return data, nil
}
