package auth

import "context"

// contextKey is the type for context keys owned by this package.
type contextKey string

const resultKey contextKey = "auth_result"

// WithResult attaches an authentication result to the context.
func WithResult(ctx context.Context, result *Result) context.Context {
	return context.WithValue(ctx, resultKey, result)
}

// FromContext retrieves the authentication result from the context.
// Returns nil when no result was attached; callers fall back to the
// system identity via Result.Actor.
func FromContext(ctx context.Context) *Result {
	if result, ok := ctx.Value(resultKey).(*Result); ok {
		return result
	}
	return nil
}
