package entities

import (
	"time"
)

// SearchRecord is the persisted metadata of one distinct normalized search
type SearchRecord struct {
	ID             string         `json:"id" db:"id"`
	SearchHash     string         `json:"search_hash" db:"search_hash"`
	Filters        SearchIdentity `json:"filters" db:"filters"`
	Platform       string         `json:"platform" db:"platform"`
	TotalResults   int            `json:"total_results" db:"total_results"`
	TokensUsed     int            `json:"tokens_used" db:"tokens_used"`
	PagesCached    int            `json:"pages_cached" db:"pages_cached"`
	AccessCount    int            `json:"access_count" db:"access_count"`
	UserID         string         `json:"user_id,omitempty" db:"user_id"`
	UserEmail      string         `json:"user_email,omitempty" db:"user_email"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at" db:"last_accessed_at"`
	ExpiresAt      time.Time      `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the record is past its expiry at time now
func (r *SearchRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// CacheStatus describes an existing cache entry for a filter set
type CacheStatus struct {
	CacheID     string    `json:"cacheId"`
	SearchHash  string    `json:"searchHash"`
	ExpiresAt   time.Time `json:"expiresAt"`
	PagesCached int       `json:"pagesCached"`
	TokensSaved int       `json:"tokensSaved"`
}

// CacheAnalytics aggregates explorer cache usage over a time window
type CacheAnalytics struct {
	DaysBack           int            `json:"daysBack"`
	TotalSearches      int            `json:"totalSearches"`
	TotalPagesCached   int            `json:"totalPagesCached"`
	TotalTokensUsed    int            `json:"totalTokensUsed"`
	TotalCacheHits     int            `json:"totalCacheHits"`
	UniqueUsers        int            `json:"uniqueUsers"`
	AvgPagesPerSearch  float64        `json:"avgPagesPerSearch"`
	SearchesByPlatform map[string]int `json:"searchesByPlatform"`
}

// PopularSearch is one entry of the most-accessed searches report
type PopularSearch struct {
	SearchID       string         `json:"searchId"`
	SearchHash     string         `json:"searchHash"`
	Filters        SearchIdentity `json:"filters"`
	Platform       string         `json:"platform"`
	AccessCount    int            `json:"accessCount"`
	PagesCached    int            `json:"pagesCached"`
	TotalResults   int            `json:"totalResults"`
	LastAccessedAt time.Time      `json:"lastAccessedAt"`
}
