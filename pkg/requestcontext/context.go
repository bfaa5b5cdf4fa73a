// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and
// neither side needs to agree on key types.
package requestcontext

import "context"

type (
	requestIDKey  struct{}
	reviewerIDKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyRequestID  = requestIDKey{}
	ContextKeyReviewerID = reviewerIDKey{}
)

// RequestID retrieves the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

// ReviewerID retrieves the authenticated reviewer ID, or "" if the request
// was not made by a reviewer.
func ReviewerID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyReviewerID).(string); ok {
		return v
	}
	return ""
}

// WithReviewerID injects an authenticated reviewer ID into the context.
func WithReviewerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyReviewerID, id)
}
