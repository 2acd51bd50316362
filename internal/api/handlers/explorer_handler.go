package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

const (
	maxFilterBodyBytes = 64 << 10

	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
	defaultPopularLimit  = 10
	maxPopularLimit      = 100
)

// ExplorerService defines the explorer operations used by the handler.
type ExplorerService interface {
	SearchInfluencersWithCache(ctx context.Context, rawFilters map[string]interface{}, userID, userEmail string) (*entities.ExplorerSearchResult, error)
	CheckCacheStatus(ctx context.Context, rawFilters map[string]interface{}) (*entities.CacheStatus, error)
	GetCacheAnalytics(ctx context.Context, daysBack int) (*entities.CacheAnalytics, error)
	GetPopularSearches(ctx context.Context, limit int) ([]*entities.PopularSearch, error)
}

// ExplorerHandler handles influencer explorer HTTP requests
type ExplorerHandler struct {
	service ExplorerService
}

// NewExplorerHandler creates a new explorer handler
func NewExplorerHandler(service ExplorerService) *ExplorerHandler {
	return &ExplorerHandler{service: service}
}

// Search handles POST /api/explorer/search
func (h *ExplorerHandler) Search(w http.ResponseWriter, r *http.Request) {
	filters, ok := decodeFilters(w, r)
	if !ok {
		return
	}

	result, err := h.service.SearchInfluencersWithCache(r.Context(), filters, r.Header.Get("X-User-ID"), r.Header.Get("X-User-Email"))
	if err != nil {
		respondWithAppError(r.Context(), w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// CacheStatus handles POST /api/explorer/cache-status
func (h *ExplorerHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	filters, ok := decodeFilters(w, r)
	if !ok {
		return
	}

	status, err := h.service.CheckCacheStatus(r.Context(), filters)
	if err != nil {
		respondWithAppError(r.Context(), w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"cached": status != nil,
		"status": status,
	})
}

// Analytics handles GET /api/explorer/analytics?days=N
func (h *ExplorerHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultAnalyticsDays, maxAnalyticsDays)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	analytics, err := h.service.GetCacheAnalytics(r.Context(), days)
	if err != nil {
		respondWithAppError(r.Context(), w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, analytics)
}

// PopularSearches handles GET /api/explorer/popular?limit=N
func (h *ExplorerHandler) PopularSearches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPopularLimit, maxPopularLimit)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	searches, err := h.service.GetPopularSearches(r.Context(), limit)
	if err != nil {
		respondWithAppError(r.Context(), w, err)
		return
	}
	if searches == nil {
		searches = []*entities.PopularSearch{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"searches": searches,
		"count":    len(searches),
	})
}

// decodeFilters reads the raw filter object. An empty body means no filters.
// A body of the form {"filters": {...}} is unwrapped.
func decodeFilters(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	filters := map[string]interface{}{}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&filters); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return nil, false
	}
	if nested, ok := filters["filters"].(map[string]interface{}); ok && len(filters) == 1 {
		filters = nested
	}
	return filters, true
}

func queryInt(r *http.Request, key string, def, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.NewValidationError(key + " must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

// statusForError maps the application error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypePaymentRequired:
		return http.StatusPaymentRequired
	case apperrors.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondWithAppError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)

	var appErr *apperrors.AppError
	message := "internal server error"
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(ctx).Error().Err(err).Int("status", status).Msg("explorer request failed")
	}

	errType := apperrors.TypeOf(err)
	if errType == "" {
		errType = apperrors.ErrorTypeInternal
	}
	respondWithJSON(w, status, map[string]string{
		"error": message,
		"type":  string(errType),
	})
}
