package creatordb

import (
	"context"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	cdb "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/creatordb"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
	"github.com/zatekoja/creatorexplorer/backend/pkg/retry"
)

// SearchClient is the slice of the CreatorDB client the search adapter uses
type SearchClient interface {
	AdvancedSearch(ctx context.Context, platform string, req *cdb.SearchRequest) (*cdb.SearchResponse, error)
}

// SearchAdapter implements CreatorSearchProvider against the CreatorDB
// advanced search endpoints
type SearchAdapter struct {
	client        SearchClient
	batchSize     int
	searchCredits int
	retryConfig   retry.Config
	metrics       *observability.Metrics
}

// NewSearchAdapter creates a new CreatorDB search adapter
func NewSearchAdapter(c SearchClient, cfg *config.CreatorDBConfig, metrics *observability.Metrics) providers.CreatorSearchProvider {
	retryConfig := retry.ProviderConfig(cfg.MaxRetries)
	retryConfig.ShouldRetry = providers.IsTransient

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &SearchAdapter{
		client:        c,
		batchSize:     batch,
		searchCredits: cfg.SearchCredits,
		retryConfig:   retryConfig,
		metrics:       metrics,
	}
}

// Search queries the batch containing the requested page
func (a *SearchAdapter) Search(ctx context.Context, identity entities.SearchIdentity, page, size int) (*entities.SearchBatch, error) {
	if page <= 0 || size <= 0 {
		return nil, &providers.ProviderError{
			Kind:    providers.ProviderErrorValidationRejected,
			Message: "page and size must be positive",
		}
	}

	platform := identity.Platform()
	offset, maxResults := BatchWindow(page, size, a.batchSize)
	req := BuildSearchRequest(identity, offset, maxResults)

	ctx, span := observability.StartSpan(ctx, "creatordb.AdvancedSearch")
	defer span.End()

	logger := observability.LoggerFromContext(ctx).With().
		Str("platform", platform).
		Int("offset", offset).
		Int("max_results", maxResults).
		Logger()

	var resp *cdb.SearchResponse
	err := retry.DoWithLog(ctx, a.retryConfig, "creatordb search",
		func() error {
			var err error
			resp, err = a.client.AdvancedSearch(ctx, platform, req)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("creator search failed, retrying")
		},
	)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	batch := &entities.SearchBatch{
		Offset:      offset,
		Identities:  make([]entities.CreatorIdentity, 0, len(resp.Data.Results)),
		CreditsUsed: a.searchCredits,
	}
	if resp.QuotaUsed > 0 {
		batch.CreditsUsed = resp.QuotaUsed
	}

	seen := make(map[string]struct{}, len(resp.Data.Results))
	for _, hit := range resp.Data.Results {
		if hit.PlatformUserID == "" {
			continue
		}
		if _, dup := seen[hit.PlatformUserID]; dup {
			continue
		}
		seen[hit.PlatformUserID] = struct{}{}
		batch.Identities = append(batch.Identities, entities.CreatorIdentity{
			Platform:   platform,
			PlatformID: hit.PlatformUserID,
		})
	}

	returned := len(resp.Data.Results)
	switch {
	case resp.Data.TotalResults != nil:
		batch.TotalAvailable = *resp.Data.TotalResults
		if floor := offset + returned; batch.TotalAvailable < floor {
			batch.TotalAvailable = floor
		}
	case returned >= maxResults:
		// no total reported: a full batch means there is at least one more
		batch.TotalAvailable = offset + returned + 1
		batch.TotalEstimated = true
	default:
		batch.TotalAvailable = offset + returned
		batch.TotalEstimated = true
	}

	observability.RecordCreditsSpent(ctx, a.metrics, platform, batch.CreditsUsed)
	logger.Debug().
		Int("returned", returned).
		Int("total_available", batch.TotalAvailable).
		Bool("total_estimated", batch.TotalEstimated).
		Int("credits", batch.CreditsUsed).
		Msg("creator search batch fetched")

	return batch, nil
}

// BatchWindow returns the provider offset and result count to request so
// that a single call covers page. Pages are served from the aligned batch
// that contains them; a page straddling two batches gets its own window.
func BatchWindow(page, size, batchSize int) (offset, maxResults int) {
	pageOffset := (page - 1) * size
	if size > batchSize {
		return pageOffset, size
	}
	aligned := pageOffset / batchSize * batchSize
	if pageOffset+size <= aligned+batchSize {
		return aligned, batchSize
	}
	return pageOffset, batchSize
}
