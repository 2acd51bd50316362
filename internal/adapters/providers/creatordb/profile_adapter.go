package creatordb

import (
	"context"
	"math"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	cdb "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/creatordb"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
	"github.com/zatekoja/creatorexplorer/backend/pkg/retry"
)

// ProfileClient is the slice of the CreatorDB client the profile adapter uses
type ProfileClient interface {
	Basic(ctx context.Context, platform, platformID string) (*cdb.BasicProfile, error)
}

type ProfileAdapter struct {
	client         ProfileClient
	profileCredits int
	retryConfig    retry.Config
	metrics        *observability.Metrics
}

func NewProfileAdapter(c ProfileClient, cfg *config.CreatorDBConfig, metrics *observability.Metrics) providers.ProfileProvider {
	retryConfig := retry.ProviderConfig(cfg.MaxRetries)
	retryConfig.ShouldRetry = providers.IsTransient

	return &ProfileAdapter{
		client:         c,
		profileCredits: cfg.ProfileCredits,
		retryConfig:    retryConfig,
		metrics:        metrics,
	}
}

// GetBasicProfile fetches one account's basic profile
func (a *ProfileAdapter) GetBasicProfile(ctx context.Context, platform, platformID string) (*entities.BasicProfile, error) {
	if !entities.IsSupportedPlatform(platform) {
		return nil, &providers.ProviderError{
			Kind:    providers.ProviderErrorValidationRejected,
			Message: "unsupported platform " + platform,
		}
	}

	var raw *cdb.BasicProfile
	err := retry.DoWithLog(ctx, a.retryConfig, "creatordb basic",
		func() error {
			var err error
			raw, err = a.client.Basic(ctx, platform, platformID)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			observability.LoggerFromContext(ctx).Debug().
				Err(err).
				Str("platform", platform).
				Str("platform_id", platformID).
				Int("attempt", attempt).
				Dur("retry_in", nextDelay).
				Msg("basic profile lookup failed, retrying")
		},
	)
	if err != nil {
		return nil, err
	}

	observability.RecordCreditsSpent(ctx, a.metrics, platform, a.profileCredits)
	return ToBasicProfile(platform, raw), nil
}

// ToBasicProfile converts a provider payload into the domain shape
func ToBasicProfile(platform string, raw *cdb.BasicProfile) *entities.BasicProfile {
	name := raw.DisplayName
	if name == "" {
		name = raw.Username
	}
	avgViews := raw.AvgViews
	if avgViews == 0 {
		avgViews = raw.AvgViewsPerVideo
	}

	profile := &entities.BasicProfile{
		Platform:       platform,
		PlatformID:     raw.PlatformUserID,
		CreatorID:      raw.CreatorID,
		Username:       raw.Username,
		Name:           name,
		Avatar:         raw.Avatar,
		Country:        raw.Country,
		Language:       raw.Language,
		Categories:     raw.Categories,
		Followers:      raw.FollowerCount(),
		EngagementRate: raw.EngagementRate,
		AvgViews:       int64(math.Round(avgViews)),
	}

	for p, id := range raw.LinkedAccounts {
		if p == platform || id == "" || !entities.IsSupportedPlatform(p) {
			continue
		}
		if profile.LinkedAccounts == nil {
			profile.LinkedAccounts = make(map[string]string)
		}
		profile.LinkedAccounts[p] = id
	}
	return profile
}
