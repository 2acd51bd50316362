package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

// PageWarmer loads a stored page into the hot cache
type PageWarmer interface {
	Warm(ctx context.Context, searchID string, page, size int) error
}

// CacheWarmingService keeps the first page of popular searches hot
type CacheWarmingService struct {
	analytics repositories.SearchAnalyticsRepository
	warmer    PageWarmer
	topN      int
	pageSize  int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	analytics repositories.SearchAnalyticsRepository,
	warmer PageWarmer,
	topN, pageSize int,
) *CacheWarmingService {
	return &CacheWarmingService{
		analytics: analytics,
		warmer:    warmer,
		topN:      topN,
		pageSize:  pageSize,
	}
}

// WarmCache warms page 1 of the most accessed searches and returns how many
// pages were loaded
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	popular, err := s.analytics.GetPopularSearches(ctx, s.topN)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch popular searches: %w", err)
	}

	warmed := 0
	for _, search := range popular {
		if ctx.Err() != nil {
			return warmed, ctx.Err()
		}
		err := s.warmer.Warm(ctx, search.SearchID, 1, s.pageSize)
		switch {
		case err == nil:
			warmed++
		case apperrors.IsNotFound(err):
			// page 1 was stored at another size
		default:
			logger.Warn().Err(err).Str("search_id", search.SearchID).Msg("failed to warm page")
		}
	}

	logger.Info().Int("warmed", warmed).Int("candidates", len(popular)).Msg("explorer cache warming completed")
	return warmed, nil
}

// StartPeriodicWarming warms once and then on every tick until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	logger := observability.GetLogger()

	if _, err := s.WarmCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					logger.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("started periodic cache warming")
}
