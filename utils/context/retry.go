package context

import (
	"context"
)

type key int

const (
	retriedKey key = iota
	skipRefreshKey
)

// WithRetried marks a request as already replayed once after a refresh.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey).(bool)
	return v
}

// WithSkipRefresh keeps a request out of the refresh flow. Credential
// exchanges use it so their 401 reaches the caller untouched.
func WithSkipRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey, true)
}

func SkipsRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(skipRefreshKey).(bool)
	return v
}
