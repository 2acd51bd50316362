package creatordb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	cdb "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/creatordb"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
)

type fakeProfileClient struct {
	calls   int
	errs    []error
	profile *cdb.BasicProfile
}

func (f *fakeProfileClient) Basic(ctx context.Context, platform, platformID string) (*cdb.BasicProfile, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.profile, nil
}

func int64Ptr(i int64) *int64 { return &i }

func TestToBasicProfile_YouTube(t *testing.T) {
	raw := &cdb.BasicProfile{
		PlatformUserID:   "UC123",
		CreatorID:        "creator-1",
		Username:         "chef",
		Subscribers:      int64Ptr(42000),
		EngagementRate:   3.5,
		AvgViewsPerVideo: 1234.6,
		LinkedAccounts: map[string]string{
			"youtube":   "UC123",
			"instagram": "chef.ig",
			"myspace":   "chef",
			"tiktok":    "",
		},
	}

	profile := ToBasicProfile("youtube", raw)
	assert.Equal(t, "chef", profile.Name, "username stands in for a missing display name")
	assert.Equal(t, int64(42000), profile.Followers)
	assert.Equal(t, int64(1235), profile.AvgViews)
	assert.Equal(t, map[string]string{"instagram": "chef.ig"}, profile.LinkedAccounts)
}

func TestToBasicProfile_NoLinks(t *testing.T) {
	profile := ToBasicProfile("instagram", &cdb.BasicProfile{
		PlatformUserID: "ig1",
		DisplayName:    "Jane",
		Followers:      int64Ptr(10),
	})
	assert.Equal(t, "Jane", profile.Name)
	assert.Nil(t, profile.LinkedAccounts)
}

func TestProfileAdapter_RetriesTransient(t *testing.T) {
	client := &fakeProfileClient{
		errs:    []error{&providers.ProviderError{Kind: providers.ProviderErrorUpstream, StatusCode: 503}},
		profile: &cdb.BasicProfile{PlatformUserID: "ig1", Followers: int64Ptr(5)},
	}
	adapter := NewProfileAdapter(client, &config.CreatorDBConfig{MaxRetries: 2}, nil).(*ProfileAdapter)
	adapter.retryConfig.InitialDelay = time.Millisecond

	profile, err := adapter.GetBasicProfile(context.Background(), "instagram", "ig1")
	require.NoError(t, err)
	assert.Equal(t, "ig1", profile.PlatformID)
	assert.Equal(t, 2, client.calls)
}

func TestProfileAdapter_NotFoundIsFinal(t *testing.T) {
	client := &fakeProfileClient{
		errs: []error{&providers.ProviderError{Kind: providers.ProviderErrorNotFound, StatusCode: 404}},
	}
	adapter := NewProfileAdapter(client, &config.CreatorDBConfig{MaxRetries: 3}, nil)

	_, err := adapter.GetBasicProfile(context.Background(), "instagram", "gone")
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestProfileAdapter_RejectsUnknownPlatform(t *testing.T) {
	client := &fakeProfileClient{}
	adapter := NewProfileAdapter(client, &config.CreatorDBConfig{}, nil)

	_, err := adapter.GetBasicProfile(context.Background(), "myspace", "x")
	require.Error(t, err)
	assert.Zero(t, client.calls)
}

func TestMockProfileProvider_LinkedAccountsShareCreator(t *testing.T) {
	p := NewMockProfileProvider()

	// scan until we find a linked account
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("mock_seed_%d", i)
		profile, err := p.GetBasicProfile(context.Background(), "instagram", id)
		require.NoError(t, err)
		if len(profile.LinkedAccounts) == 0 {
			continue
		}
		linkedID := profile.LinkedAccounts["youtube"]
		require.NotEmpty(t, linkedID)

		linked, err := p.GetBasicProfile(context.Background(), "youtube", linkedID)
		require.NoError(t, err)
		assert.Equal(t, profile.CreatorID, linked.CreatorID)
		assert.Empty(t, linked.LinkedAccounts)
		return
	}
	t.Fatal("expected at least one linked mock account")
}

func TestNewProviders_MockWithoutAPIKey(t *testing.T) {
	p := NewProviders(&config.CreatorDBConfig{BatchSize: 20}, nil)
	assert.True(t, p.Mock)
	assert.IsType(t, &MockSearchProvider{}, p.Search)

	p = NewProviders(&config.CreatorDBConfig{APIKey: "k", BaseURL: "http://localhost"}, nil)
	assert.False(t, p.Mock)
	assert.IsType(t, &SearchAdapter{}, p.Search)
	assert.IsType(t, &ProfileAdapter{}, p.Profile)
}
