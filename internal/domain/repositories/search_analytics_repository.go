package repositories

import (
	"context"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
)

// SearchAnalyticsRepository serves read-only reports over cached searches
type SearchAnalyticsRepository interface {
	GetCacheAnalytics(ctx context.Context, daysBack int) (*entities.CacheAnalytics, error)
	GetPopularSearches(ctx context.Context, limit int) ([]*entities.PopularSearch, error)
}
