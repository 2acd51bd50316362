package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
)

const cacheWriteTimeout = 2 * time.Second

// CachedPageAdapter puts a Redis hot copy in front of the Postgres page store.
// Postgres stays the source of truth: cache errors degrade to a database read.
type CachedPageAdapter struct {
	adapter  repositories.PageRepository
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ttl      time.Duration
}

// NewCachedPageAdapter wraps adapter with a hot cache. eventBus may be nil.
func NewCachedPageAdapter(adapter repositories.PageRepository, cache providers.CacheProvider, eventBus providers.EventBus, ttl time.Duration) *CachedPageAdapter {
	return &CachedPageAdapter{
		adapter:  adapter,
		cache:    cache,
		eventBus: eventBus,
		ttl:      ttl,
	}
}

// GetPage reads through the hot cache
func (a *CachedPageAdapter) GetPage(ctx context.Context, searchID string, page, size int) (*entities.ResultPage, error) {
	key := providers.PageCacheKey(searchID, page, size)
	logger := observability.LoggerFromContext(ctx)

	cached, err := a.cache.Get(ctx, key)
	switch {
	case err == nil:
		var result entities.ResultPage
		decodeErr := json.Unmarshal(cached, &result)
		if decodeErr == nil {
			return &result, nil
		}
		logger.Warn().Err(decodeErr).Str("key", key).Msg("discarding undecodable hot page")
	case !errors.Is(err, providers.ErrCacheMiss):
		logger.Warn().Err(err).Str("key", key).Msg("hot cache read failed")
	}

	result, err := a.adapter.GetPage(ctx, searchID, page, size)
	if err != nil {
		return nil, err
	}

	go a.store(key, result)
	return result, nil
}

// UpsertPage writes to Postgres, drops stale hot copies and announces the change
func (a *CachedPageAdapter) UpsertPage(ctx context.Context, page *entities.ResultPage) error {
	if err := a.adapter.UpsertPage(ctx, page); err != nil {
		return err
	}

	logger := observability.LoggerFromContext(ctx)
	if err := a.cache.DeletePattern(ctx, providers.PageCachePattern(page.SearchID, page.PageNumber)); err != nil {
		logger.Warn().Err(err).
			Str("search_id", page.SearchID).
			Int("page", page.PageNumber).
			Msg("failed to drop stale hot pages")
	}

	if a.eventBus != nil {
		event := entities.NewPageCachedEvent(page.SearchID, page.PageNumber, page.PageSize)
		if err := a.eventBus.Publish(ctx, providers.EventChannelExplorerPages, event); err != nil {
			logger.Warn().Err(err).Str("search_id", page.SearchID).Msg("failed to publish page_cached event")
		}
	}
	return nil
}

// IncrementPagesCached is not cached
func (a *CachedPageAdapter) IncrementPagesCached(ctx context.Context, searchID string) error {
	return a.adapter.IncrementPagesCached(ctx, searchID)
}

// Warm loads a page from Postgres into the hot cache
func (a *CachedPageAdapter) Warm(ctx context.Context, searchID string, page, size int) error {
	result, err := a.adapter.GetPage(ctx, searchID, page, size)
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	return a.cache.Set(ctx, providers.PageCacheKey(searchID, page, size), data, a.ttl)
}

func (a *CachedPageAdapter) store(key string, page *entities.ResultPage) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()

	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
		observability.GetLogger().Warn().Err(err).Str("key", key).Msg("failed to cache page")
	}
}
