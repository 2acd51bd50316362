package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by CacheProvider.Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache, returning ErrCacheMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
}

// PageCacheKey is the hot cache key of one explorer page at one size
func PageCacheKey(searchID string, page, size int) string {
	return fmt.Sprintf("explorer:page:%s:%d:%d", searchID, page, size)
}

// SearchCachePattern matches every cached page of a search
func SearchCachePattern(searchID string) string {
	return fmt.Sprintf("explorer:page:%s:*", searchID)
}

// PageCachePattern matches an explorer page at every size
func PageCachePattern(searchID string, page int) string {
	return fmt.Sprintf("explorer:page:%s:%d:*", searchID, page)
}
