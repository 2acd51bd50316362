package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"golang.org/x/sync/semaphore"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
)

const defaultEnrichConcurrency = 8

// EnricherConfig controls profile fan-out
type EnricherConfig struct {
	Concurrency         int
	FetchLinkedProfiles bool
	ProfileCredits      int
}

// EnrichmentResult is the outcome of enriching one page of identities
type EnrichmentResult struct {
	Profiles    []*entities.InfluencerProfile
	Dropped     int
	// Failed counts drops caused by anything other than a missing profile.
	// Those identities may well resolve on a later attempt.
	Failed      int
	Lookups     int
	CreditsUsed int
}

// Durable reports whether the page built from requested identities may be
// cached. Pages that lost profiles to transient errors, or lost all of them,
// are served but not stored.
func (r *EnrichmentResult) Durable(requested int) bool {
	if r.Failed > 0 {
		return false
	}
	return requested == 0 || len(r.Profiles) > 0
}

// ResultEnricher expands bare creator identities into merged cross-platform profiles
type ResultEnricher struct {
	profiles providers.ProfileProvider
	config   EnricherConfig
	metrics  *observability.Metrics
}

// NewResultEnricher creates a new result enricher
func NewResultEnricher(profiles providers.ProfileProvider, cfg EnricherConfig, metrics *observability.Metrics) *ResultEnricher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultEnrichConcurrency
	}
	return &ResultEnricher{
		profiles: profiles,
		config:   cfg,
		metrics:  metrics,
	}
}

// Enrich looks up every identity's basic profile in parallel, merges linked
// accounts and deduplicates. Failed lookups are dropped individually.
func (e *ResultEnricher) Enrich(ctx context.Context, identities []entities.CreatorIdentity, platform string) *EnrichmentResult {
	ctx, span := observability.StartSpan(ctx, "explorer.Enrich")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	loader, lookups := e.newLoader()

	primaryKeys := make([]string, len(identities))
	for i, id := range identities {
		primaryKeys[i] = id.Key()
	}
	primaries := loadAll(ctx, loader, primaryKeys)

	result := &EnrichmentResult{}
	basics := make([]*entities.BasicProfile, 0, len(identities))
	for i, p := range primaries {
		if p.err != nil {
			logger.Debug().Err(p.err).Str("identity", primaryKeys[i]).Msg("dropping identity after failed profile lookup")
			result.Dropped++
			if pe, ok := providers.AsProviderError(p.err); !ok || pe.Kind != providers.ProviderErrorNotFound {
				result.Failed++
			}
			continue
		}
		basics = append(basics, p.profile)
	}

	linked := map[string]*entities.BasicProfile{}
	if e.config.FetchLinkedProfiles {
		var linkedKeys []string
		for _, b := range basics {
			for p, id := range b.LinkedAccounts {
				linkedKeys = append(linkedKeys, entities.CreatorIdentity{Platform: p, PlatformID: id}.Key())
			}
		}
		for i, r := range loadAll(ctx, loader, linkedKeys) {
			if r.err != nil {
				// the primary record still stands without this platform
				logger.Debug().Err(r.err).Str("identity", linkedKeys[i]).Msg("linked profile lookup failed")
				continue
			}
			linked[linkedKeys[i]] = r.profile
		}
	}

	profiles := make([]*entities.InfluencerProfile, 0, len(basics))
	for _, b := range basics {
		profiles = append(profiles, mergeProfile(platform, b, linked))
	}

	result.Profiles = DeduplicateProfiles(profiles)
	result.Lookups = lookups()
	result.CreditsUsed = result.Lookups * e.config.ProfileCredits

	if result.Dropped > 0 {
		observability.RecordEnrichmentDropped(ctx, e.metrics, platform, result.Dropped)
		logger.Warn().
			Str("platform", platform).
			Int("dropped", result.Dropped).
			Int("failed", result.Failed).
			Int("requested", len(identities)).
			Msg("some identities could not be enriched")
	}
	return result
}

type loadResult struct {
	profile *entities.BasicProfile
	err     error
}

func loadAll(ctx context.Context, loader *dataloader.Loader[string, *entities.BasicProfile], keys []string) []loadResult {
	thunks := make([]dataloader.Thunk[*entities.BasicProfile], len(keys))
	for i, k := range keys {
		thunks[i] = loader.Load(ctx, k)
	}
	out := make([]loadResult, len(keys))
	for i, thunk := range thunks {
		out[i].profile, out[i].err = thunk()
	}
	return out
}

// newLoader builds a per-call loader. Duplicate keys within one Enrich call
// resolve to a single provider lookup. The returned func reports how many
// lookups reached the provider.
func (e *ResultEnricher) newLoader() (*dataloader.Loader[string, *entities.BasicProfile], func() int) {
	var mu sync.Mutex
	lookups := 0

	batchFn := func(ctx context.Context, keys []string) []*dataloader.Result[*entities.BasicProfile] {
		results := make([]*dataloader.Result[*entities.BasicProfile], len(keys))
		sem := semaphore.NewWeighted(int64(e.config.Concurrency))
		var wg sync.WaitGroup

		for i, key := range keys {
			if err := sem.Acquire(ctx, 1); err != nil {
				for j := i; j < len(keys); j++ {
					results[j] = &dataloader.Result[*entities.BasicProfile]{Error: err}
				}
				break
			}
			wg.Add(1)
			go func(i int, key string) {
				defer wg.Done()
				defer sem.Release(1)

				platform, platformID := splitIdentityKey(key)
				profile, err := e.profiles.GetBasicProfile(ctx, platform, platformID)

				mu.Lock()
				lookups++
				mu.Unlock()

				if err == nil && profile == nil {
					err = &providers.ProviderError{Kind: providers.ProviderErrorNotFound, Message: "empty profile for " + key}
				}
				results[i] = &dataloader.Result[*entities.BasicProfile]{Data: profile, Error: err}
			}(i, key)
		}
		wg.Wait()
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn,
		dataloader.WithWait[string, *entities.BasicProfile](time.Millisecond),
		dataloader.WithBatchCapacity[string, *entities.BasicProfile](100),
	)
	return loader, func() int {
		mu.Lock()
		defer mu.Unlock()
		return lookups
	}
}

func splitIdentityKey(key string) (platform, platformID string) {
	platform, platformID, _ = strings.Cut(key, ":")
	return platform, platformID
}

// mergeProfile folds the primary account and any fetched linked accounts into one
// record. Headline numbers come from the primary platform.
func mergeProfile(platform string, primary *entities.BasicProfile, linked map[string]*entities.BasicProfile) *entities.InfluencerProfile {
	if primary.Platform != "" {
		platform = primary.Platform
	}

	profile := &entities.InfluencerProfile{
		CreatorID:             primary.CreatorID,
		Name:                  primary.Name,
		Avatar:                primary.Avatar,
		Country:               primary.Country,
		Language:              primary.Language,
		Categories:            primary.Categories,
		FollowersCount:        primary.Followers,
		AverageEngagementRate: primary.EngagementRate,
		MainSocialPlatform:    platform,
		PlatformInfo:          map[string]*entities.PlatformInfo{platform: platformInfoOf(primary)},
		FollowerBreakdown:     map[string]int64{platform: primary.Followers},
	}

	for p, id := range primary.LinkedAccounts {
		other, ok := linked[entities.CreatorIdentity{Platform: p, PlatformID: id}.Key()]
		if !ok {
			continue
		}
		profile.PlatformInfo[p] = platformInfoOf(other)
		profile.FollowerBreakdown[p] = other.Followers
		if profile.Avatar == "" {
			profile.Avatar = other.Avatar
		}
		if profile.Name == "" {
			profile.Name = other.Name
		}
		if profile.CreatorID == "" {
			profile.CreatorID = other.CreatorID
		}
	}
	return profile
}

func platformInfoOf(b *entities.BasicProfile) *entities.PlatformInfo {
	return &entities.PlatformInfo{
		PlatformID:     b.PlatformID,
		Username:       b.Username,
		Name:           b.Name,
		Avatar:         b.Avatar,
		Followers:      b.Followers,
		EngagementRate: b.EngagementRate,
		AvgViews:       b.AvgViews,
	}
}

// DeduplicateProfiles keeps one record per creator and sorts by followers.
// Records are grouped by creator id, then by normalized name; records with
// neither are all kept.
func DeduplicateProfiles(profiles []*entities.InfluencerProfile) []*entities.InfluencerProfile {
	out := make([]*entities.InfluencerProfile, 0, len(profiles))
	index := make(map[string]int, len(profiles))

	for _, p := range profiles {
		if p == nil {
			continue
		}
		key := dedupKey(p)
		if key == "" {
			out = append(out, p)
			continue
		}
		if i, ok := index[key]; ok {
			if betterProfile(p, out[i]) {
				out[i] = p
			}
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FollowersCount != out[j].FollowersCount {
			return out[i].FollowersCount > out[j].FollowersCount
		}
		return out[i].CreatorID < out[j].CreatorID
	})
	return out
}

func dedupKey(p *entities.InfluencerProfile) string {
	if p.CreatorID != "" {
		return "id:" + p.CreatorID
	}
	if name := p.NormalizedName(); name != "" {
		return "name:" + name
	}
	return ""
}

// betterProfile reports whether a should replace b
func betterProfile(a, b *entities.InfluencerProfile) bool {
	if a.FollowersCount != b.FollowersCount {
		return a.FollowersCount > b.FollowersCount
	}
	if a.LinkedPlatformCount() != b.LinkedPlatformCount() {
		return a.LinkedPlatformCount() > b.LinkedPlatformCount()
	}
	return a.AverageEngagementRate > b.AverageEngagementRate
}
