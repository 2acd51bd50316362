package repositories

import (
	"context"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
)

// PageRepository is the explorer result page store
type PageRepository interface {
	// GetPage returns the cached page for (searchID, page) with the given
	// size. Returns a NOT_FOUND AppError when the page was never stored.
	GetPage(ctx context.Context, searchID string, page, size int) (*entities.ResultPage, error)

	// UpsertPage stores a page. Concurrent writes for the same
	// (searchID, page) leave exactly one row; the last write wins.
	UpsertPage(ctx context.Context, page *entities.ResultPage) error

	// IncrementPagesCached atomically brings the search's pages_cached counter
	// up to the number of stored pages. Calling it again for a page that was
	// already counted leaves the counter unchanged.
	IncrementPagesCached(ctx context.Context, searchID string) error
}
