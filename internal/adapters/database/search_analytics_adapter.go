package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

const (
	defaultAnalyticsDays = 30
	defaultPopularLimit  = 10
	maxPopularLimit      = 100
)

type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

func (a *SearchAnalyticsAdapter) GetCacheAnalytics(ctx context.Context, daysBack int) (*entities.CacheAnalytics, error) {
	if daysBack <= 0 {
		daysBack = defaultAnalyticsDays
	}
	since := a.now().UTC().AddDate(0, 0, -daysBack)

	query, args, err := a.db.From(searchesTable).
		Select(
			goqu.COUNT("*"),
			goqu.COALESCE(goqu.SUM("pages_cached"), 0),
			goqu.COALESCE(goqu.SUM("tokens_used"), 0),
			goqu.COALESCE(goqu.SUM("access_count"), 0),
			goqu.COUNT(goqu.DISTINCT("user_id")),
		).
		Where(goqu.C("created_at").Gte(since)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build analytics query", err)
	}

	out := &entities.CacheAnalytics{
		DaysBack:           daysBack,
		SearchesByPlatform: map[string]int{},
	}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&out.TotalSearches,
		&out.TotalPagesCached,
		&out.TotalTokensUsed,
		&out.TotalCacheHits,
		&out.UniqueUsers,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get cache analytics", err)
	}
	if out.TotalSearches > 0 {
		out.AvgPagesPerSearch = float64(out.TotalPagesCached) / float64(out.TotalSearches)
	}

	query, args, err = a.db.From(searchesTable).
		Select("platform", goqu.COUNT("*")).
		Where(goqu.C("created_at").Gte(since)).
		GroupBy("platform").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build platform breakdown query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get platform breakdown", err)
	}
	defer rows.Close()

	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan platform breakdown", err)
		}
		out.SearchesByPlatform[platform] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read platform breakdown", err)
	}

	return out, nil
}

// GetPopularSearches lists live searches by access count
func (a *SearchAnalyticsAdapter) GetPopularSearches(ctx context.Context, limit int) ([]*entities.PopularSearch, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if limit > maxPopularLimit {
		limit = maxPopularLimit
	}

	query, args, err := a.db.From(searchesTable).
		Select(searchRecordColumns...).
		Where(goqu.C("expires_at").Gt(a.now().UTC())).
		Order(goqu.I("access_count").Desc(), goqu.I("last_accessed_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build popular searches query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get popular searches", err)
	}
	defer rows.Close()

	var popular []*entities.PopularSearch
	for rows.Next() {
		record, err := scanSearchRecord(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan popular search", err)
		}
		popular = append(popular, &entities.PopularSearch{
			SearchID:       record.ID,
			SearchHash:     record.SearchHash,
			Filters:        record.Filters,
			Platform:       record.Platform,
			AccessCount:    record.AccessCount,
			PagesCached:    record.PagesCached,
			TotalResults:   record.TotalResults,
			LastAccessedAt: record.LastAccessedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read popular searches", err)
	}

	return popular, nil
}
