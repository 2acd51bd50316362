package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
)

// CacheInvalidationService drops hot page copies when any instance stores a
// page or purges an expired search
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for page events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelExplorerPages)
	if err != nil {
		return fmt.Errorf("failed to subscribe to explorer page events: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	observability.GetLogger().Info().Str("channel", providers.EventChannelExplorerPages).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	observability.GetLogger().Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.ExplorerEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.ExplorerEvent) {
	if event.SearchID == "" {
		return
	}
	if event.Type != entities.ExplorerEventPageCached && event.Type != entities.ExplorerEventSearchExpired {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	logger := observability.GetLogger().With().
		Str("event_id", event.ID).
		Str("search_id", event.SearchID).
		Int("page", event.PageNumber).
		Logger()

	var err error
	if event.Type == entities.ExplorerEventSearchExpired {
		err = s.InvalidateSearch(ctx, event.SearchID)
	} else {
		err = s.InvalidatePage(ctx, event.SearchID, event.PageNumber)
	}
	if err != nil {
		logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to invalidate hot pages")
		return
	}
	logger.Debug().Str("event_type", string(event.Type)).Msg("invalidated hot pages")
}

// InvalidatePage removes every cached size of one page
func (s *CacheInvalidationService) InvalidatePage(ctx context.Context, searchID string, page int) error {
	if err := s.cache.DeletePattern(ctx, providers.PageCachePattern(searchID, page)); err != nil {
		return fmt.Errorf("failed to invalidate page %d of %s: %w", page, searchID, err)
	}
	return nil
}

// InvalidateSearch removes every cached page of a search
func (s *CacheInvalidationService) InvalidateSearch(ctx context.Context, searchID string) error {
	if err := s.cache.DeletePattern(ctx, providers.SearchCachePattern(searchID)); err != nil {
		return fmt.Errorf("failed to invalidate search %s: %w", searchID, err)
	}
	return nil
}
