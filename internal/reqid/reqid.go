// Package reqid generates and carries a per-request correlation id through
// a context.Context, grounded on the teacher's direct dependency on
// github.com/google/uuid (inherited from its S3 upload manifests, reused
// here for HTTP request correlation instead).
package reqid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// New generates a fresh request id.
func New() string {
	return uuid.NewString()
}

// WithValue attaches id to ctx.
func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request id attached to ctx, or "" if none.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
