package services

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

type prefetchTask struct {
	searchID       string
	hash           string
	identity       entities.SearchIdentity
	page           int
	size           int
	totalAvailable int
	batch          *entities.SearchBatch
}

// schedulePrefetch starts a detached fetch of the page after the one just
// served. It never blocks the caller and its errors never reach the caller.
func (s *ExplorerCacheService) schedulePrefetch(req searchRequest, searchID string, totalAvailable int, batch *entities.SearchBatch) {
	p := req.pagination
	if !entities.HasNextPage(p.Page, p.Size, totalAvailable) || s.config.PrefetchLookAhead <= 0 {
		return
	}

	task := prefetchTask{
		searchID:       searchID,
		hash:           req.hash,
		identity:       req.identity,
		page:           p.Page + 1,
		size:           p.Size,
		totalAvailable: totalAvailable,
		batch:          batch,
	}

	s.prefetchMu.Lock()
	if s.prefetchClosed {
		s.prefetchMu.Unlock()
		return
	}
	s.prefetchWG.Add(1)
	s.prefetchMu.Unlock()

	go func() {
		defer s.prefetchWG.Done()

		logger := observability.GetLogger().With().
			Str("search_id", task.searchID).
			Str("search_hash", task.hash).
			Int("size", task.size).
			Logger()

		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("explorer prefetch panicked")
				observability.RecordPrefetch(context.Background(), s.metrics, "failed")
			}
		}()

		// spread bursts out before hitting the rate-limited provider
		if !s.prefetchDelay(s.prefetchCtx, s.config.PrefetchDelay) {
			return
		}

		ctx := s.prefetchCtx
		if s.config.PrefetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.PrefetchTimeout)
			defer cancel()
		}

		outcome, err := s.runPrefetch(ctx, task, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("explorer prefetch failed")
		}
		observability.RecordPrefetch(ctx, s.metrics, outcome)
	}()
}

// runPrefetch walks forward from task.page and fetches the first page that is
// not cached yet, looking at most PrefetchLookAhead pages ahead and never past
// the provider's reported total.
func (s *ExplorerCacheService) runPrefetch(ctx context.Context, task prefetchTask, logger zerolog.Logger) (string, error) {
	last := task.page + s.config.PrefetchLookAhead - 1

	for page := task.page; page <= last; page++ {
		if (page-1)*task.size >= task.totalAvailable {
			return "skipped", nil
		}

		_, err := s.pages.GetPage(ctx, task.searchID, page, task.size)
		if err == nil {
			continue
		}
		if !apperrors.IsNotFound(err) {
			return "failed", fmt.Errorf("page %d lookup: %w", page, err)
		}

		p := entities.Pagination{Page: page, Size: task.size}
		fetched, owner, err := s.fetchPage(ctx, task.hash, task.identity, p, task.batch)
		if err != nil {
			return "failed", fmt.Errorf("page %d fetch: %w", page, err)
		}
		if !owner {
			return "skipped", nil
		}

		pageLogger := logger.With().Int("page", page).Logger()
		s.addTokens(ctx, task.searchID, fetched.credits, pageLogger)
		if !s.storePage(ctx, task.searchID, fetched, pageLogger) {
			return "failed", fmt.Errorf("page %d was not cached", page)
		}
		pageLogger.Debug().Int("credits", fetched.credits).Msg("explorer page prefetched")
		return "fetched", nil
	}
	return "skipped", nil
}
