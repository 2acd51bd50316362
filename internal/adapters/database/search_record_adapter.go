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
	"github.com/google/uuid"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

const searchesTable = "explorer_searches"

var searchRecordColumns = []interface{}{
	"id", "search_hash", "filters", "platform", "total_results", "tokens_used",
	"pages_cached", "access_count", "user_id", "user_email",
	"created_at", "last_accessed_at", "expires_at",
}

// SearchRecordAdapter implements SearchRecordRepository on Postgres
type SearchRecordAdapter struct {
	client   *postgres.Client
	db       *goqu.Database
	eventBus providers.EventBus
}

// NewSearchRecordAdapter creates a new search record adapter. eventBus may be
// nil; when set, purged searches are announced so hot copies can be dropped.
func NewSearchRecordAdapter(client *postgres.Client, eventBus providers.EventBus) repositories.SearchRecordRepository {
	return &SearchRecordAdapter{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		eventBus: eventBus,
	}
}

// FindByHash returns the live record for hash, recording the access
func (a *SearchRecordAdapter) FindByHash(ctx context.Context, hash string) (*entities.SearchRecord, error) {
	query, args, err := a.db.Update(searchesTable).
		Set(goqu.Record{
			"last_accessed_at": goqu.L("NOW()"),
			"access_count":     goqu.L("access_count + 1"),
		}).
		Where(
			goqu.Ex{"search_hash": hash},
			goqu.C("expires_at").Gt(goqu.L("NOW()")),
		).
		Returning(searchRecordColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search lookup query", err)
	}

	record, err := scanSearchRecord(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no live search for hash %s", hash))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find search by hash", err)
	}
	return record, nil
}

// Create inserts record. An expired row with the same hash is dropped first
// (its pages go with it); a live row wins and its id is returned.
func (a *SearchRecordAdapter) Create(ctx context.Context, record *entities.SearchRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.LastAccessedAt.IsZero() {
		record.LastAccessedAt = record.CreatedAt
	}

	filters, err := json.Marshal(record.Filters)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode search filters", err)
	}

	purged, err := a.purgeExpired(ctx, record.SearchHash)
	if err != nil {
		return "", err
	}
	a.announcePurged(ctx, purged)

	query, args, err := a.db.Insert(searchesTable).
		Rows(goqu.Record{
			"id":               record.ID,
			"search_hash":      record.SearchHash,
			"filters":          string(filters),
			"platform":         record.Platform,
			"total_results":    record.TotalResults,
			"tokens_used":      record.TokensUsed,
			"pages_cached":     record.PagesCached,
			"access_count":     record.AccessCount,
			"user_id":          nullString(record.UserID),
			"user_email":       nullString(record.UserEmail),
			"created_at":       record.CreatedAt,
			"last_accessed_at": record.LastAccessedAt,
			"expires_at":       record.ExpiresAt,
		}).
		OnConflict(goqu.DoUpdate("search_hash", goqu.Record{
			"last_accessed_at": goqu.L("NOW()"),
		})).
		Returning("id").
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build search insert", err)
	}

	var id string
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", apperrors.NewInternalError("failed to create search record", err)
	}
	return id, nil
}

func (a *SearchRecordAdapter) purgeExpired(ctx context.Context, hash string) ([]string, error) {
	query, args, err := a.db.Delete(searchesTable).
		Where(
			goqu.Ex{"search_hash": hash},
			goqu.C("expires_at").Lte(goqu.L("NOW()")),
		).
		Returning("id").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build expired search purge", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to purge expired search", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan purged search id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to purge expired search", err)
	}
	return ids, nil
}

func (a *SearchRecordAdapter) announcePurged(ctx context.Context, ids []string) {
	if a.eventBus == nil {
		return
	}
	for _, id := range ids {
		if err := a.eventBus.Publish(ctx, providers.EventChannelExplorerPages, entities.NewSearchExpiredEvent(id)); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("search_id", id).Msg("failed to publish search_expired event")
		}
	}
}

// AddTokensUsed adds spent credits to the search's running total
func (a *SearchRecordAdapter) AddTokensUsed(ctx context.Context, searchID string, credits int) error {
	if credits <= 0 {
		return nil
	}

	query, args, err := a.db.Update(searchesTable).
		Set(goqu.Record{"tokens_used": goqu.L("tokens_used + ?", credits)}).
		Where(goqu.Ex{"id": searchID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build tokens update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to add tokens used", err)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSearchRecord(row rowScanner) (*entities.SearchRecord, error) {
	record := &entities.SearchRecord{}
	var filters []byte
	var userID, userEmail sql.NullString

	err := row.Scan(
		&record.ID,
		&record.SearchHash,
		&filters,
		&record.Platform,
		&record.TotalResults,
		&record.TokensUsed,
		&record.PagesCached,
		&record.AccessCount,
		&userID,
		&userEmail,
		&record.CreatedAt,
		&record.LastAccessedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &record.Filters); err != nil {
			return nil, fmt.Errorf("decode filters of search %s: %w", record.ID, err)
		}
	}
	record.UserID = userID.String
	record.UserEmail = userEmail.String
	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
