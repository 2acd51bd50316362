package creatordb

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/pkg/utils"
)

const (
	mockLinkPrefix  = "link_"
	mockMaxResults  = 240
	mockLinkEvery   = 3
	mockIDSeparator = "_"
)

// MockSearchProvider serves deterministic creator ids for local development.
// The same identity always yields the same ordered result set.
type MockSearchProvider struct {
	batchSize int
}

func NewMockSearchProvider(batchSize int) providers.CreatorSearchProvider {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &MockSearchProvider{batchSize: batchSize}
}

func (m *MockSearchProvider) Search(ctx context.Context, identity entities.SearchIdentity, page, size int) (*entities.SearchBatch, error) {
	if page <= 0 || size <= 0 {
		return nil, &providers.ProviderError{
			Kind:    providers.ProviderErrorValidationRejected,
			Message: "page and size must be positive",
		}
	}

	platform := identity.Platform()
	hash := utils.HashSearchIdentity(identity)[:8]
	total := int(hashOf(hash) % mockMaxResults)

	offset, maxResults := BatchWindow(page, size, m.batchSize)
	batch := &entities.SearchBatch{
		Offset:         offset,
		TotalAvailable: total,
		CreditsUsed:    1,
	}
	for i := offset; i < offset+maxResults && i < total; i++ {
		batch.Identities = append(batch.Identities, entities.CreatorIdentity{
			Platform:   platform,
			PlatformID: strings.Join([]string{"mock", hash, fmt.Sprint(i)}, mockIDSeparator),
		})
	}
	return batch, nil
}

// MockProfileProvider fabricates stable profiles. Every third account is
// linked to an account on another platform that shares its creator id.
type MockProfileProvider struct{}

func NewMockProfileProvider() providers.ProfileProvider {
	return &MockProfileProvider{}
}

func (m *MockProfileProvider) GetBasicProfile(ctx context.Context, platform, platformID string) (*entities.BasicProfile, error) {
	if platformID == "" {
		return nil, &providers.ProviderError{
			Kind:    providers.ProviderErrorValidationRejected,
			Message: "platformUserId is required",
		}
	}

	root := strings.TrimPrefix(platformID, mockLinkPrefix)
	seed := hashOf(root)
	name := fmt.Sprintf("Creator %04d", seed%10000)

	profile := &entities.BasicProfile{
		Platform:       platform,
		PlatformID:     platformID,
		CreatorID:      fmt.Sprintf("creator_%x", seed),
		Username:       strings.ToLower(strings.ReplaceAll(name, " ", "")),
		Name:           name,
		Country:        []string{"US", "GB", "NG", "BR", "IN"}[seed%5],
		Language:       "en",
		Followers:      int64(1000 + seed%5_000_000),
		EngagementRate: float64(seed%1000) / 100,
		AvgViews:       int64(seed % 250_000),
	}

	if !strings.HasPrefix(platformID, mockLinkPrefix) && seed%mockLinkEvery == 0 {
		linked := entities.PlatformYouTube
		if platform == entities.PlatformYouTube {
			linked = entities.PlatformInstagram
		}
		profile.LinkedAccounts = map[string]string{linked: mockLinkPrefix + root}
	}
	return profile, nil
}

func hashOf(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
