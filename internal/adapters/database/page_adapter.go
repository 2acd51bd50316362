package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

const resultsTable = "explorer_search_results"

// PageAdapter implements PageRepository on the explorer_search_results table
type PageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPageAdapter creates a new page adapter
func NewPageAdapter(client *postgres.Client) repositories.PageRepository {
	return &PageAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetPage returns a stored page. A page stored with a different size is a miss.
func (a *PageAdapter) GetPage(ctx context.Context, searchID string, page, size int) (*entities.ResultPage, error) {
	query, args, err := a.db.Select(
		"search_id", "page_number", "page_size", "influencer_ids", "influencers_data",
		"total_results_in_page", "total_available", "has_next_page", "updated_at",
	).From(resultsTable).
		Where(goqu.Ex{
			"search_id":   searchID,
			"page_number": page,
			"page_size":   size,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build page query", err)
	}

	result := &entities.ResultPage{}
	var ids pq.StringArray
	var data []byte

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&result.SearchID,
		&result.PageNumber,
		&result.PageSize,
		&ids,
		&data,
		&result.TotalResultsInPage,
		&result.TotalAvailable,
		&result.HasNextPage,
		&result.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("page %d (size %d) of search %s not cached", page, size, searchID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get result page", err)
	}

	result.InfluencerIDs = []string(ids)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result.InfluencersData); err != nil {
			return nil, apperrors.NewInternalError("failed to decode cached influencers", err)
		}
	}
	return result, nil
}

// UpsertPage writes a page; an existing (search_id, page_number) row is replaced
func (a *PageAdapter) UpsertPage(ctx context.Context, page *entities.ResultPage) error {
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = time.Now().UTC()
	}

	ids := page.InfluencerIDs
	if ids == nil {
		ids = []string{}
	}
	profiles := page.InfluencersData
	if profiles == nil {
		profiles = []*entities.InfluencerProfile{}
	}
	data, err := json.Marshal(profiles)
	if err != nil {
		return apperrors.NewInternalError("failed to encode influencers", err)
	}

	query, args, err := a.db.Insert(resultsTable).
		Rows(goqu.Record{
			"search_id":             page.SearchID,
			"page_number":           page.PageNumber,
			"page_size":             page.PageSize,
			"influencer_ids":        pq.Array(ids),
			"influencers_data":      string(data),
			"total_results_in_page": page.TotalResultsInPage,
			"total_available":       page.TotalAvailable,
			"has_next_page":         page.HasNextPage,
			"created_at":            page.UpdatedAt,
			"updated_at":            page.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("search_id, page_number", goqu.Record{
			"page_size":             goqu.L("EXCLUDED.page_size"),
			"influencer_ids":        goqu.L("EXCLUDED.influencer_ids"),
			"influencers_data":      goqu.L("EXCLUDED.influencers_data"),
			"total_results_in_page": goqu.L("EXCLUDED.total_results_in_page"),
			"total_available":       goqu.L("EXCLUDED.total_available"),
			"has_next_page":         goqu.L("EXCLUDED.has_next_page"),
			"updated_at":            goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build page upsert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert result page", err)
	}
	return nil
}

// IncrementPagesCached sets pages_cached from the stored page count in one statement
func (a *PageAdapter) IncrementPagesCached(ctx context.Context, searchID string) error {
	stored := a.db.From(resultsTable).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"search_id": searchID})

	query, args, err := a.db.Update(searchesTable).
		Set(goqu.Record{"pages_cached": stored}).
		Where(goqu.Ex{"id": searchID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build pages counter update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update pages cached", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("search %s not found", searchID))
	}
	return nil
}
