package entities

import (
	"time"
)

// CacheInfo tells the caller how a search result was served
type CacheInfo struct {
	Hit        bool       `json:"hit"`
	TokensUsed int        `json:"tokensUsed"`
	SearchHash string     `json:"searchHash"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ExplorerSearchResult is the response of one explorer search request
type ExplorerSearchResult struct {
	Items       []*InfluencerProfile `json:"items"`
	Page        int                  `json:"page"`
	Size        int                  `json:"size"`
	Count       int                  `json:"count"`
	HasNextPage bool                 `json:"hasNextPage"`
	Cached      bool                 `json:"cached"`
	CacheInfo   CacheInfo            `json:"cacheInfo"`
}
