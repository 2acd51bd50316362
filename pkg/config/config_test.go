package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.CreatorDB.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.CreatorDB.Timeout)
	assert.Equal(t, 10, cfg.Explorer.DefaultPageSize)
	assert.Equal(t, 50, cfg.Explorer.MaxPageSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Explorer.CacheTTL)
	assert.True(t, cfg.Explorer.FetchLinkedProfiles)
	assert.Equal(t, "creator-explorer", cfg.OTEL.ServiceName)
}

func TestLoad_CreatorDBConfig(t *testing.T) {
	t.Setenv("CREATORDB_BASE_URL", "http://creatordb.test")
	t.Setenv("CREATORDB_API_KEY", "test-key")
	t.Setenv("CREATORDB_BATCH_SIZE", "100")
	t.Setenv("CREATORDB_TIMEOUT", "45")
	t.Setenv("CREATORDB_RATE_LIMIT", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://creatordb.test", cfg.CreatorDB.BaseURL)
	assert.Equal(t, "test-key", cfg.CreatorDB.APIKey)
	assert.Equal(t, 100, cfg.CreatorDB.BatchSize)
	assert.Equal(t, 45*time.Second, cfg.CreatorDB.Timeout)
	assert.Equal(t, 2.5, cfg.CreatorDB.RateLimitPerSecond)
}

func TestLoad_DurationFormats(t *testing.T) {
	t.Setenv("EXPLORER_PREFETCH_DELAY", "250ms")
	t.Setenv("EXPLORER_HOT_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Explorer.PrefetchDelay)
	assert.Equal(t, 10*time.Minute, cfg.Explorer.HotCacheTTL)
}

func TestLoad_RejectsInvalidPageSizes(t *testing.T) {
	t.Setenv("EXPLORER_DEFAULT_PAGE_SIZE", "80")
	t.Setenv("EXPLORER_MAX_PAGE_SIZE", "50")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "explorer", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=explorer sslmode=disable", db.DatabaseDSN())
}
