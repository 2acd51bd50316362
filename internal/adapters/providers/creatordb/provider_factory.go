package creatordb

import (
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	cdb "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/creatordb"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
)

// Providers bundles the creator data providers the explorer needs
type Providers struct {
	Search  providers.CreatorSearchProvider
	Profile providers.ProfileProvider
	Mock    bool
}

// NewProviders builds CreatorDB-backed providers.
func NewProviders(cfg *config.CreatorDBConfig, metrics *observability.Metrics) *Providers {
	if cfg.APIKey == "" {
		// No API key configured; serve deterministic mock data for dev.
		return &Providers{
			Search:  NewMockSearchProvider(cfg.BatchSize),
			Profile: NewMockProfileProvider(),
			Mock:    true,
		}
	}

	client := cdb.NewClient(cfg, metrics)
	return &Providers{
		Search:  NewSearchAdapter(client, cfg, metrics),
		Profile: NewProfileAdapter(client, cfg, metrics),
	}
}
