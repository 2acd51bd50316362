package repositories

import (
	"context"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
)

// SearchRecordRepository is the explorer search metadata store. It is the
// only writer of the explorer_searches table apart from the page counter.
type SearchRecordRepository interface {
	// FindByHash returns the unexpired record for a search hash and bumps
	// its last_accessed_at. Returns a NOT_FOUND AppError on miss.
	FindByHash(ctx context.Context, hash string) (*entities.SearchRecord, error)

	// Create inserts a record and returns its id. When another writer
	// created the same hash first, the existing id is returned.
	Create(ctx context.Context, record *entities.SearchRecord) (string, error)

	// AddTokensUsed adds spent provider credits to a search
	AddTokensUsed(ctx context.Context, searchID string, credits int) error
}
