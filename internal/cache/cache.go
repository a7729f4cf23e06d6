// Package cache provides the summary-result cache: an in-process LRU by
// default, or a shared Redis cache when one is configured. A cache
// failure looks like a miss; the store stays the source of truth.
package cache

import "context"

// Cache is a best-effort key/value cache.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T)
	Delete(ctx context.Context, key string)
}
