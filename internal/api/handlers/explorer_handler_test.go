package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/creatorexplorer/backend/internal/api/handlers"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

// MockExplorerService defines the mock service
type MockExplorerService struct {
	mock.Mock
}

func (m *MockExplorerService) SearchInfluencersWithCache(ctx context.Context, rawFilters map[string]interface{}, userID, userEmail string) (*entities.ExplorerSearchResult, error) {
	args := m.Called(ctx, rawFilters, userID, userEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ExplorerSearchResult), args.Error(1)
}

func (m *MockExplorerService) CheckCacheStatus(ctx context.Context, rawFilters map[string]interface{}) (*entities.CacheStatus, error) {
	args := m.Called(ctx, rawFilters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CacheStatus), args.Error(1)
}

func (m *MockExplorerService) GetCacheAnalytics(ctx context.Context, daysBack int) (*entities.CacheAnalytics, error) {
	args := m.Called(ctx, daysBack)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CacheAnalytics), args.Error(1)
}

func (m *MockExplorerService) GetPopularSearches(ctx context.Context, limit int) ([]*entities.PopularSearch, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PopularSearch), args.Error(1)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestExplorerHandler_Search(t *testing.T) {
	t.Run("passes filters and user headers through", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)

		result := &entities.ExplorerSearchResult{
			Items:       []*entities.InfluencerProfile{{CreatorID: "c1", Name: "Ada"}},
			Page:        1,
			Size:        20,
			Count:       1,
			HasNextPage: true,
			Cached:      true,
			CacheInfo:   entities.CacheInfo{Hit: true, SearchHash: "abc"},
		}
		mockService.On("SearchInfluencersWithCache", mock.Anything, mock.MatchedBy(func(f map[string]interface{}) bool {
			return f["platform"] == "instagram" && f["minFollowers"] == json.Number("1000")
		}), "user-1", "ada@example.com").Return(result, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/explorer/search",
			bytes.NewBufferString(`{"platform":"instagram","minFollowers":1000}`))
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("X-User-Email", "ada@example.com")
		w := httptest.NewRecorder()

		handler.Search(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["cached"])
		assert.Equal(t, true, body["hasNextPage"])
		assert.Equal(t, "abc", body["cacheInfo"].(map[string]interface{})["searchHash"])
		mockService.AssertExpectations(t)
	})

	t.Run("unwraps a filters envelope", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)

		mockService.On("SearchInfluencersWithCache", mock.Anything, mock.MatchedBy(func(f map[string]interface{}) bool {
			return f["platform"] == "tiktok" && len(f) == 1
		}), "", "").Return(&entities.ExplorerSearchResult{Items: []*entities.InfluencerProfile{}}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/explorer/search",
			bytes.NewBufferString(`{"filters":{"platform":"tiktok"}}`))
		w := httptest.NewRecorder()

		handler.Search(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("returns bad request for invalid payload", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/explorer/search", bytes.NewBufferString("not-json"))
		w := httptest.NewRecorder()

		handler.Search(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "SearchInfluencersWithCache", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps service errors to status codes", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
		}{
			{"validation", apperrors.NewValidationError("minFollowers must be less than maxFollowers"), http.StatusBadRequest},
			{"auth", apperrors.NewUnauthorizedError("bad key", nil), http.StatusUnauthorized},
			{"credits", apperrors.NewPaymentRequiredError("credits exhausted", nil), http.StatusPaymentRequired},
			{"rate limited", apperrors.NewRateLimitedError("slow down", nil), http.StatusTooManyRequests},
			{"external", apperrors.NewExternalError("creator search failed", errors.New("503")), http.StatusBadGateway},
			{"unknown", errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockService := new(MockExplorerService)
				handler := handlers.NewExplorerHandler(mockService)
				mockService.On("SearchInfluencersWithCache", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

				req := httptest.NewRequest(http.MethodPost, "/api/explorer/search", bytes.NewBufferString(`{}`))
				w := httptest.NewRecorder()

				handler.Search(w, req)

				assert.Equal(t, tt.status, w.Code)
				body := decodeBody(t, w)
				if tt.status == http.StatusInternalServerError {
					assert.Equal(t, "internal server error", body["error"])
				} else {
					assert.NotEmpty(t, body["error"])
				}
			})
		}
	})
}

func TestExplorerHandler_CacheStatus(t *testing.T) {
	t.Run("reports an uncached search", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)
		mockService.On("CheckCacheStatus", mock.Anything, mock.Anything).Return(nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/explorer/cache-status", bytes.NewBufferString(`{"platform":"youtube"}`))
		w := httptest.NewRecorder()

		handler.CacheStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["cached"])
		assert.Nil(t, body["status"])
	})

	t.Run("returns the cache entry", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)
		mockService.On("CheckCacheStatus", mock.Anything, mock.Anything).Return(&entities.CacheStatus{
			CacheID:     "search-1",
			SearchHash:  "abc",
			PagesCached: 3,
			TokensSaved: 12,
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/explorer/cache-status", nil)
		w := httptest.NewRecorder()

		handler.CacheStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["cached"])
		status := body["status"].(map[string]interface{})
		assert.Equal(t, float64(3), status["pagesCached"])
		assert.Equal(t, float64(12), status["tokensSaved"])
	})
}

func TestExplorerHandler_Analytics(t *testing.T) {
	t.Run("defaults days", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)
		mockService.On("GetCacheAnalytics", mock.Anything, 30).Return(&entities.CacheAnalytics{DaysBack: 30}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/explorer/analytics", nil)
		w := httptest.NewRecorder()

		handler.Analytics(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("caps days", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)
		mockService.On("GetCacheAnalytics", mock.Anything, 365).Return(&entities.CacheAnalytics{DaysBack: 365}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/explorer/analytics?days=9000", nil)
		w := httptest.NewRecorder()

		handler.Analytics(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("rejects bad days", func(t *testing.T) {
		mockService := new(MockExplorerService)
		handler := handlers.NewExplorerHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/explorer/analytics?days=-1", nil)
		w := httptest.NewRecorder()

		handler.Analytics(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExplorerHandler_PopularSearches(t *testing.T) {
	mockService := new(MockExplorerService)
	handler := handlers.NewExplorerHandler(mockService)
	mockService.On("GetPopularSearches", mock.Anything, 5).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/explorer/popular?limit=5", nil)
	w := httptest.NewRecorder()

	handler.PopularSearches(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["searches"])
	mockService.AssertExpectations(t)
}
