package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
	"github.com/zatekoja/creatorexplorer/backend/pkg/utils"
)

// ExplorerCacheService serves explorer searches from the page cache and only
// spends provider credits on pages that were never fetched.
type ExplorerCacheService struct {
	records   repositories.SearchRecordRepository
	pages     repositories.PageRepository
	analytics repositories.SearchAnalyticsRepository
	search    providers.CreatorSearchProvider
	enricher  *ResultEnricher
	config    config.ExplorerConfig
	metrics   *observability.Metrics
	now       func() time.Time

	// in-flight provider fetches keyed by hash:page:size
	inflight singleflight.Group

	// prefetchMu orders prefetchWG.Add against Close
	prefetchMu     sync.Mutex
	prefetchClosed bool
	prefetchCtx    context.Context
	stopPrefetch   context.CancelFunc
	prefetchWG     sync.WaitGroup
	prefetchDelay  func(ctx context.Context, d time.Duration) bool
}

// NewExplorerCacheService creates a new explorer cache service
func NewExplorerCacheService(
	records repositories.SearchRecordRepository,
	pages repositories.PageRepository,
	analytics repositories.SearchAnalyticsRepository,
	search providers.CreatorSearchProvider,
	enricher *ResultEnricher,
	cfg config.ExplorerConfig,
	metrics *observability.Metrics,
) *ExplorerCacheService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExplorerCacheService{
		records:       records,
		pages:         pages,
		analytics:     analytics,
		search:        search,
		enricher:      enricher,
		config:        cfg,
		metrics:       metrics,
		now:           time.Now,
		prefetchCtx:   ctx,
		stopPrefetch:  cancel,
		prefetchDelay: sleepCtx,
	}
}

type searchRequest struct {
	identity   entities.SearchIdentity
	hash       string
	pagination entities.Pagination
	userID     string
	userEmail  string
}

// fetchedPage is one page built from a provider batch, before it is stored
type fetchedPage struct {
	page    *entities.ResultPage
	batch   *entities.SearchBatch
	credits int
	// durable is false when enrichment lost profiles it may recover later
	durable bool
}

// SearchInfluencersWithCache runs an explorer search. The caller always gets a
// best-effort result unless the provider rejects the request outright.
func (s *ExplorerCacheService) SearchInfluencersWithCache(ctx context.Context, rawFilters map[string]interface{}, userID, userEmail string) (*entities.ExplorerSearchResult, error) {
	identity, dropped := utils.NormalizeFiltersWithReport(rawFilters)
	if err := utils.ValidateFilters(identity); err != nil {
		return nil, err
	}

	req := searchRequest{
		identity:   identity,
		hash:       utils.HashSearchIdentity(identity),
		pagination: utils.ExtractPagination(rawFilters, s.config.DefaultPageSize, s.config.MaxPageSize),
		userID:     userID,
		userEmail:  userEmail,
	}

	ctx, span := observability.StartSpan(ctx, "explorer.SearchInfluencersWithCache")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("explorer.search_hash", req.hash),
		attribute.String("explorer.platform", identity.Platform()),
		attribute.Int("explorer.page", req.pagination.Page),
		attribute.Int("explorer.size", req.pagination.Size),
	)

	logger := s.requestLogger(ctx, req)
	if len(dropped) > 0 {
		logger.Debug().Strs("dropped_filters", dropped).Msg("ignored unusable filters")
	}

	result, err := s.serve(ctx, req, logger)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if _, ok := providers.AsProviderError(err); ok {
		observability.RecordError(span, err)
		return nil, providerAppError(err)
	}

	logger.Error().Err(err).Msg("explorer cache failed, serving uncached result")
	return s.serveUncached(ctx, req)
}

// CheckCacheStatus reports whether a live cached search exists for the filters.
// It returns nil when nothing is cached.
func (s *ExplorerCacheService) CheckCacheStatus(ctx context.Context, rawFilters map[string]interface{}) (*entities.CacheStatus, error) {
	identity := utils.NormalizeFilters(rawFilters)
	hash := utils.HashSearchIdentity(identity)

	record, err := s.records.FindByHash(ctx, hash)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("search_hash", hash).Msg("cache status lookup failed")
		}
		return nil, nil
	}

	return &entities.CacheStatus{
		CacheID:     record.ID,
		SearchHash:  record.SearchHash,
		ExpiresAt:   record.ExpiresAt,
		PagesCached: record.PagesCached,
		TokensSaved: record.TokensUsed,
	}, nil
}

// GetCacheAnalytics returns aggregate cache usage over the last daysBack days
func (s *ExplorerCacheService) GetCacheAnalytics(ctx context.Context, daysBack int) (*entities.CacheAnalytics, error) {
	return s.analytics.GetCacheAnalytics(ctx, daysBack)
}

// GetPopularSearches returns the most accessed live searches
func (s *ExplorerCacheService) GetPopularSearches(ctx context.Context, limit int) ([]*entities.PopularSearch, error) {
	return s.analytics.GetPopularSearches(ctx, limit)
}

// Close stops scheduling prefetches and waits for running ones. It is safe to
// call more than once and concurrently with searches.
func (s *ExplorerCacheService) Close() {
	s.prefetchMu.Lock()
	s.prefetchClosed = true
	s.prefetchMu.Unlock()

	s.stopPrefetch()
	s.prefetchWG.Wait()
}

// Wait blocks until all in-flight prefetches have finished
func (s *ExplorerCacheService) Wait() {
	s.prefetchWG.Wait()
}

func (s *ExplorerCacheService) serve(ctx context.Context, req searchRequest, logger zerolog.Logger) (result *entities.ExplorerSearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("explorer cache panic: %v", r)
		}
	}()

	platform := req.identity.Platform()
	record, err := s.records.FindByHash(ctx, req.hash)
	switch {
	case err == nil:
		observability.RecordCacheHit(ctx, s.metrics, "record", platform)
		return s.serveKnownSearch(ctx, req, record, logger)
	case apperrors.IsNotFound(err):
		observability.RecordCacheMiss(ctx, s.metrics, "record", platform)
	default:
		logger.Warn().Err(err).Msg("search lookup failed, treating as miss")
		observability.RecordCacheMiss(ctx, s.metrics, "record", platform)
	}
	return s.serveNewSearch(ctx, req, logger)
}

func (s *ExplorerCacheService) serveNewSearch(ctx context.Context, req searchRequest, logger zerolog.Logger) (*entities.ExplorerSearchResult, error) {
	fetched, owner, err := s.fetchPage(ctx, req.hash, req.identity, req.pagination, nil)
	if err != nil {
		return nil, err
	}
	credits := 0
	if owner {
		credits = fetched.credits
	}

	expiresAt := s.now().UTC().Add(s.config.CacheTTL)
	record := &entities.SearchRecord{
		SearchHash:   req.hash,
		Filters:      req.identity,
		Platform:     req.identity.Platform(),
		TotalResults: fetched.batch.TotalAvailable,
		TokensUsed:   credits,
		UserID:       req.userID,
		UserEmail:    req.userEmail,
		ExpiresAt:    expiresAt,
	}

	searchID, err := s.records.Create(ctx, record)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to record search, result will not be cached")
		return buildResult(fetched.page, req.pagination, false, credits, req.hash, nil), nil
	}
	if searchID != record.ID {
		// another request created the search first; charge our spend to it
		s.addTokens(ctx, searchID, credits, logger)
	}

	if owner {
		s.storePage(ctx, searchID, fetched, logger)
	}
	logger.Info().
		Str("search_id", searchID).
		Int("credits", credits).
		Int("total_available", fetched.batch.TotalAvailable).
		Msg("explorer search cached")

	s.schedulePrefetch(req, searchID, fetched.page.TotalAvailable, fetched.batch)
	return buildResult(fetched.page, req.pagination, false, credits, req.hash, &expiresAt), nil
}

func (s *ExplorerCacheService) serveKnownSearch(ctx context.Context, req searchRequest, record *entities.SearchRecord, logger zerolog.Logger) (*entities.ExplorerSearchResult, error) {
	platform := req.identity.Platform()
	p := req.pagination
	logger = logger.With().Str("search_id", record.ID).Logger()
	expiresAt := record.ExpiresAt

	page, err := s.pages.GetPage(ctx, record.ID, p.Page, p.Size)
	switch {
	case err == nil:
		observability.RecordCacheHit(ctx, s.metrics, "page", platform)
		logger.Debug().Msg("explorer page served from cache")
		s.schedulePrefetch(req, record.ID, page.TotalAvailable, nil)
		return buildResult(page, p, true, 0, req.hash, &expiresAt), nil
	case apperrors.IsNotFound(err):
	default:
		logger.Warn().Err(err).Msg("page lookup failed, fetching from provider")
	}
	observability.RecordCacheMiss(ctx, s.metrics, "page", platform)

	fetched, owner, err := s.fetchPage(ctx, req.hash, req.identity, p, nil)
	if err != nil {
		return nil, err
	}
	credits := 0
	if owner {
		credits = fetched.credits
		s.addTokens(ctx, record.ID, credits, logger)
		s.storePage(ctx, record.ID, fetched, logger)
	}

	s.schedulePrefetch(req, record.ID, fetched.page.TotalAvailable, fetched.batch)
	return buildResult(fetched.page, p, false, credits, req.hash, &expiresAt), nil
}

// serveUncached bypasses every store
func (s *ExplorerCacheService) serveUncached(ctx context.Context, req searchRequest) (*entities.ExplorerSearchResult, error) {
	fetched, err := s.buildFromProvider(ctx, req.identity, req.pagination, nil)
	if err != nil {
		if _, ok := providers.AsProviderError(err); ok {
			return nil, providerAppError(err)
		}
		return nil, apperrors.NewExternalError("creator search failed", err)
	}
	return buildResult(fetched.page, req.pagination, false, fetched.credits, req.hash, nil), nil
}

// fetchPage builds one page from the provider, sharing the call with any
// concurrent request for the same page. owner is true for the caller whose
// call actually ran; only the owner accounts credits and stores the page.
func (s *ExplorerCacheService) fetchPage(ctx context.Context, hash string, identity entities.SearchIdentity, p entities.Pagination, batch *entities.SearchBatch) (*fetchedPage, bool, error) {
	key := fmt.Sprintf("%s:%d:%d", hash, p.Page, p.Size)
	owner := false
	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		owner = true
		return s.buildFromProvider(ctx, identity, p, batch)
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*fetchedPage), owner, nil
}

// buildFromProvider slices the page out of batch when it covers the page,
// otherwise it asks the provider for a new batch
func (s *ExplorerCacheService) buildFromProvider(ctx context.Context, identity entities.SearchIdentity, p entities.Pagination, batch *entities.SearchBatch) (*fetchedPage, error) {
	credits := 0
	if !batchCovers(batch, p) {
		var err error
		batch, err = s.search.Search(ctx, identity, p.Page, p.Size)
		if err != nil {
			return nil, err
		}
		credits = batch.CreditsUsed
	}

	window := batch.Window(p)
	enriched := s.enricher.Enrich(ctx, window, identity.Platform())

	ids := make([]string, len(window))
	for i, id := range window {
		ids[i] = id.Key()
	}

	return &fetchedPage{
		page: &entities.ResultPage{
			PageNumber:         p.Page,
			PageSize:           p.Size,
			InfluencerIDs:      ids,
			InfluencersData:    enriched.Profiles,
			TotalResultsInPage: len(enriched.Profiles),
			TotalAvailable:     batch.TotalAvailable,
			HasNextPage:        entities.HasNextPage(p.Page, p.Size, batch.TotalAvailable),
			UpdatedAt:          s.now().UTC(),
		},
		batch:   batch,
		credits: credits + enriched.CreditsUsed,
		durable: enriched.Durable(len(window)),
	}, nil
}

// batchCovers reports whether batch already holds every identity of page p
func batchCovers(batch *entities.SearchBatch, p entities.Pagination) bool {
	if batch == nil {
		return false
	}
	start := p.Offset()
	end := batch.Offset + len(batch.Identities)
	if start < batch.Offset || start >= end {
		return false
	}
	if start+p.Size <= end {
		return true
	}
	// a short final page is covered once the provider reported the real end
	return !batch.TotalEstimated && end >= batch.TotalAvailable
}

// storePage persists a page and refreshes the page count. Failures are logged only.
// Pages whose enrichment failed are left out so the next request retries them.
func (s *ExplorerCacheService) storePage(ctx context.Context, searchID string, fetched *fetchedPage, logger zerolog.Logger) bool {
	if !fetched.durable {
		logger.Warn().
			Int("page", fetched.page.PageNumber).
			Int("profiles", len(fetched.page.InfluencersData)).
			Int("identities", len(fetched.page.InfluencerIDs)).
			Msg("profile enrichment incomplete, page not cached")
		return false
	}

	stored := *fetched.page
	stored.SearchID = searchID

	if err := s.pages.UpsertPage(ctx, &stored); err != nil {
		logger.Warn().Err(err).Int("page", stored.PageNumber).Msg("failed to store explorer page")
		return false
	}
	if err := s.pages.IncrementPagesCached(ctx, searchID); err != nil {
		logger.Warn().Err(err).Msg("failed to update pages cached")
	}
	return true
}

func (s *ExplorerCacheService) addTokens(ctx context.Context, searchID string, credits int, logger zerolog.Logger) {
	if credits <= 0 {
		return
	}
	if err := s.records.AddTokensUsed(ctx, searchID, credits); err != nil {
		logger.Warn().Err(err).Int("credits", credits).Msg("failed to record credits")
	}
}

func (s *ExplorerCacheService) requestLogger(ctx context.Context, req searchRequest) zerolog.Logger {
	return observability.LoggerFromContext(ctx).With().
		Str("search_hash", req.hash).
		Str("platform", req.identity.Platform()).
		Int("page", req.pagination.Page).
		Int("size", req.pagination.Size).
		Logger()
}

func buildResult(page *entities.ResultPage, p entities.Pagination, cached bool, credits int, hash string, expiresAt *time.Time) *entities.ExplorerSearchResult {
	items := page.InfluencersData
	if items == nil {
		items = []*entities.InfluencerProfile{}
	}
	return &entities.ExplorerSearchResult{
		Items:       items,
		Page:        p.Page,
		Size:        p.Size,
		Count:       len(items),
		HasNextPage: entities.HasNextPage(p.Page, p.Size, page.TotalAvailable),
		Cached:      cached,
		CacheInfo: entities.CacheInfo{
			Hit:        cached,
			TokensUsed: credits,
			SearchHash: hash,
			ExpiresAt:  expiresAt,
		},
	}
}

// providerAppError maps a provider failure onto the application error taxonomy
func providerAppError(err error) error {
	pe, ok := providers.AsProviderError(err)
	if !ok {
		return apperrors.NewExternalError("creator search failed", err)
	}
	switch pe.Kind {
	case providers.ProviderErrorAuthFailed:
		return apperrors.NewUnauthorizedError("creator data provider rejected the API key", err)
	case providers.ProviderErrorCreditExhausted:
		return apperrors.NewPaymentRequiredError("creator data provider credits exhausted", err)
	case providers.ProviderErrorRateLimited:
		return apperrors.NewRateLimitedError("creator data provider is rate limiting requests", err)
	case providers.ProviderErrorValidationRejected:
		msg := "creator data provider rejected the filters"
		if pe.Message != "" {
			msg += ": " + pe.Message
		}
		if pe.Hint != "" {
			msg += " (" + pe.Hint + ")"
		}
		return apperrors.NewValidationError(msg)
	case providers.ProviderErrorNotFound:
		return apperrors.NewNotFoundError("creator data provider returned no such resource")
	}
	return apperrors.NewExternalError("creator search failed", err)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
