package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/adapters/cache"
	"github.com/zatekoja/creatorexplorer/backend/internal/adapters/database"
	"github.com/zatekoja/creatorexplorer/backend/internal/adapters/events"
	"github.com/zatekoja/creatorexplorer/backend/internal/adapters/providers/creatordb"
	"github.com/zatekoja/creatorexplorer/backend/internal/api/handlers"
	"github.com/zatekoja/creatorexplorer/backend/internal/api/routes"
	"github.com/zatekoja/creatorexplorer/backend/internal/application/services"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/repositories"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
	"github.com/zatekoja/creatorexplorer/backend/pkg/secrets"
)

const hotCachePrefix = "creator-explorer:"

func main() {
	// secrets must land in the environment before config.Load reads it
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(), secrets.ExplorerSecretKeys)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Environment, cfg.App.LogLevel)
	logger := observability.GetLogger()

	if vaultErr != nil {
		logger.Warn().Err(vaultErr).Msg("failed to load secrets from Vault, using environment")
	} else if vaultResult.Enabled {
		logger.Info().Str("path", vaultResult.Path).Strs("loaded", vaultResult.Loaded).Strs("skipped", vaultResult.Skipped).Msg("secrets loaded from Vault")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if err := database.Migrate(ctx, pgClient); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply explorer schema migrations")
	}
	logger.Info().Msg("PostgreSQL ready")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// pages are still served from Postgres
			logger.Warn().Err(err).Msg("Redis unavailable, running without hot page cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var (
		pageRepo      repositories.PageRepository = database.NewPageAdapter(pgClient)
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
		invalidation  *services.CacheInvalidationService
	)
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient, hotCachePrefix)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	recordRepo := database.NewSearchRecordAdapter(pgClient, eventBus)
	analyticsRepo := database.NewSearchAnalyticsAdapter(pgClient)

	if redisClient != nil {
		cachedPages := database.NewCachedPageAdapter(pageRepo, cacheProvider, eventBus, cfg.Explorer.HotCacheTTL)
		pageRepo = cachedPages

		invalidation = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := invalidation.Start(); err != nil {
			logger.Warn().Err(err).Msg("failed to start cache invalidation service")
			invalidation = nil
		}

		if cfg.Explorer.WarmingInterval > 0 {
			warming := services.NewCacheWarmingService(analyticsRepo, cachedPages, cfg.Explorer.WarmingTopN, cfg.Explorer.DefaultPageSize)
			go warming.StartPeriodicWarming(ctx, cfg.Explorer.WarmingInterval)
		}
	}

	creatorProviders := creatordb.NewProviders(&cfg.CreatorDB, metrics)
	if creatorProviders.Mock {
		logger.Warn().Msg("CREATORDB_API_KEY is not set; serving mock creator data")
	}

	enricher := services.NewResultEnricher(creatorProviders.Profile, services.EnricherConfig{
		Concurrency:         cfg.Explorer.EnrichConcurrency,
		FetchLinkedProfiles: cfg.Explorer.FetchLinkedProfiles,
		ProfileCredits:      cfg.CreatorDB.ProfileCredits,
	}, metrics)

	explorerService := services.NewExplorerCacheService(
		recordRepo,
		pageRepo,
		analyticsRepo,
		creatorProviders.Search,
		enricher,
		cfg.Explorer,
		metrics,
	)

	router := routes.NewRouter(handlers.NewExplorerHandler(explorerService), cfg.Server.AllowedOrigins, metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CreatorDB.Timeout*time.Duration(cfg.CreatorDB.MaxRetries+1) + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	// stop warming before the stores go away
	cancel()
	explorerService.Close()

	if invalidation != nil {
		invalidation.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	logger.Info().Msg("server stopped")
}
