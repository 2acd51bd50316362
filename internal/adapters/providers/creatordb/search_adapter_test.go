package creatordb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	cdb "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/creatordb"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
)

type fakeSearchClient struct {
	mu        sync.Mutex
	calls     []*cdb.SearchRequest
	platforms []string
	errs      []error
	resp      *cdb.SearchResponse
}

func (f *fakeSearchClient) AdvancedSearch(ctx context.Context, platform string, req *cdb.SearchRequest) (*cdb.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	f.platforms = append(f.platforms, platform)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.resp, nil
}

func searchResponse(ids []string, total *int, quota int) *cdb.SearchResponse {
	resp := &cdb.SearchResponse{Success: true, QuotaUsed: quota}
	for _, id := range ids {
		resp.Data.Results = append(resp.Data.Results, cdb.SearchHit{PlatformUserID: id})
	}
	resp.Data.TotalResults = total
	return resp
}

func intPtr(i int) *int { return &i }

func newTestSearchAdapter(client SearchClient, batch int) *SearchAdapter {
	a := NewSearchAdapter(client, &config.CreatorDBConfig{
		BatchSize:     batch,
		SearchCredits: 1,
		MaxRetries:    3,
	}, nil).(*SearchAdapter)
	a.retryConfig.InitialDelay = time.Millisecond
	a.retryConfig.MaxDelay = 5 * time.Millisecond
	return a
}

func identity(entries ...entities.FilterEntry) entities.SearchIdentity {
	return entities.NewSearchIdentity(entries)
}

func TestBatchWindow(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		batch      int
		wantOffset int
		wantMax    int
	}{
		{"first page inside first batch", 1, 10, 50, 0, 50},
		{"page inside second batch", 7, 10, 50, 50, 50},
		{"page straddling two batches", 4, 15, 50, 45, 50},
		{"size larger than batch", 2, 80, 50, 80, 80},
		{"last page of batch", 5, 10, 50, 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, max := BatchWindow(tt.page, tt.size, tt.batch)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantMax, max)
			// the window always covers the page
			pageOffset := (tt.page - 1) * tt.size
			assert.LessOrEqual(t, offset, pageOffset)
			assert.GreaterOrEqual(t, offset+max, pageOffset+tt.size)
		})
	}
}

func TestSearchAdapter_ReportedTotal(t *testing.T) {
	client := &fakeSearchClient{resp: searchResponse([]string{"a", "b", "b", "c"}, intPtr(120), 2)}
	adapter := newTestSearchAdapter(client, 50)

	batch, err := adapter.Search(context.Background(), identity(
		entities.FilterEntry{Key: "platform", Value: "tiktok"},
		entities.FilterEntry{Key: "minFollowers", Value: int64(1000)},
	), 1, 10)
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.Equal(t, "tiktok", client.platforms[0])
	assert.Equal(t, 0, client.calls[0].Offset)
	assert.Equal(t, 50, client.calls[0].MaxResults)

	assert.Equal(t, []entities.CreatorIdentity{
		{Platform: "tiktok", PlatformID: "a"},
		{Platform: "tiktok", PlatformID: "b"},
		{Platform: "tiktok", PlatformID: "c"},
	}, batch.Identities)
	assert.Equal(t, 120, batch.TotalAvailable)
	assert.False(t, batch.TotalEstimated)
	assert.Equal(t, 2, batch.CreditsUsed)
}

func TestSearchAdapter_EstimatesMissingTotal(t *testing.T) {
	full := &fakeSearchClient{resp: searchResponse([]string{"a", "b"}, nil, 0)}
	batch, err := newTestSearchAdapter(full, 2).Search(context.Background(), identity(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.TotalAvailable, "a full batch implies at least one more")
	assert.True(t, batch.TotalEstimated)
	assert.Equal(t, 1, batch.CreditsUsed, "falls back to configured credits")

	short := &fakeSearchClient{resp: searchResponse([]string{"a"}, nil, 0)}
	batch, err = newTestSearchAdapter(short, 2).Search(context.Background(), identity(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.TotalAvailable)
}

func TestSearchAdapter_TotalNeverBelowReturned(t *testing.T) {
	client := &fakeSearchClient{resp: searchResponse([]string{"a", "b", "c"}, intPtr(1), 1)}
	batch, err := newTestSearchAdapter(client, 50).Search(context.Background(), identity(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.TotalAvailable)
}

func TestSearchAdapter_RetriesTransientFailures(t *testing.T) {
	client := &fakeSearchClient{
		errs: []error{
			&providers.ProviderError{Kind: providers.ProviderErrorRateLimited, StatusCode: 429},
			&providers.ProviderError{Kind: providers.ProviderErrorTimeout},
		},
		resp: searchResponse([]string{"a"}, intPtr(1), 1),
	}
	batch, err := newTestSearchAdapter(client, 50).Search(context.Background(), identity(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, batch.Identities, 1)
	assert.Len(t, client.calls, 3)
}

func TestSearchAdapter_DoesNotRetryPermanentFailures(t *testing.T) {
	client := &fakeSearchClient{
		errs: []error{&providers.ProviderError{Kind: providers.ProviderErrorAuthFailed, StatusCode: 401}},
	}
	_, err := newTestSearchAdapter(client, 50).Search(context.Background(), identity(), 1, 10)
	require.Error(t, err)

	pe, ok := providers.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, providers.ProviderErrorAuthFailed, pe.Kind)
	assert.Len(t, client.calls, 1)
}

func TestSearchAdapter_RejectsBadPagination(t *testing.T) {
	client := &fakeSearchClient{}
	_, err := newTestSearchAdapter(client, 50).Search(context.Background(), identity(), 0, 10)
	require.Error(t, err)
	assert.Empty(t, client.calls)
}

func TestBuildSearchRequest_InstagramFilters(t *testing.T) {
	req := BuildSearchRequest(identity(
		entities.FilterEntry{Key: "platform", Value: "instagram"},
		entities.FilterEntry{Key: "minFollowers", Value: int64(10000)},
		entities.FilterEntry{Key: "maxEngagementRate", Value: float64(5)},
		entities.FilterEntry{Key: "country", Value: "US"},
		entities.FilterEntry{Key: "category", Value: []string{"beauty", "fashion"}},
		entities.FilterEntry{Key: "verified", Value: true},
		entities.FilterEntry{Key: "desc", Value: false},
	), 50, 50)

	assert.Equal(t, 50, req.Offset)
	assert.Equal(t, 50, req.MaxResults)
	assert.Equal(t, "followers", req.SortBy)
	assert.False(t, req.Desc)
	assert.ElementsMatch(t, []cdb.SearchFilter{
		{FilterKey: "followers", Op: ">=", Value: int64(10000)},
		{FilterKey: "engagementRate", Op: "<=", Value: 0.05},
		{FilterKey: "country", Op: "=", Value: "US"},
		{FilterKey: "category", Op: "in", Value: []string{"beauty", "fashion"}},
		{FilterKey: "isVerified", Op: "=", Value: true},
	}, req.Filters)
}

func TestBuildSearchRequest_YouTubeRenamesAudienceKeys(t *testing.T) {
	req := BuildSearchRequest(identity(
		entities.FilterEntry{Key: "platform", Value: "youtube"},
		entities.FilterEntry{Key: "minFollowers", Value: int64(500)},
		entities.FilterEntry{Key: "minAvgViews", Value: int64(1000)},
		entities.FilterEntry{Key: "sortBy", Value: "avgViews"},
	), 0, 50)

	assert.Equal(t, "avgViewsPerVideo", req.SortBy)
	assert.True(t, req.Desc)
	assert.ElementsMatch(t, []cdb.SearchFilter{
		{FilterKey: "subscribers", Op: ">=", Value: int64(500)},
		{FilterKey: "avgViewsPerVideo", Op: ">=", Value: int64(1000)},
	}, req.Filters)
}

func TestBuildSearchRequest_EmptyIdentity(t *testing.T) {
	req := BuildSearchRequest(identity(), 0, 50)
	assert.NotNil(t, req.Filters)
	assert.Empty(t, req.Filters)
	assert.Equal(t, "followers", req.SortBy)
}

func TestMockSearchProvider_Deterministic(t *testing.T) {
	p := NewMockSearchProvider(50)
	id := identity(entities.FilterEntry{Key: "platform", Value: "instagram"})

	first, err := p.Search(context.Background(), id, 1, 10)
	require.NoError(t, err)
	second, err := p.Search(context.Background(), id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, len(first.Identities), 50)
}
