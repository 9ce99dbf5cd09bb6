package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/pnlcore/internal/blob/s3"
	"github.com/alanyoungcy/pnlcore/internal/cache/redis"
	"github.com/alanyoungcy/pnlcore/internal/config"
	"github.com/alanyoungcy/pnlcore/internal/ctf"
	"github.com/alanyoungcy/pnlcore/internal/domain"
	"github.com/alanyoungcy/pnlcore/internal/platform/goldsky"
	"github.com/alanyoungcy/pnlcore/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. Constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	FillStore       domain.FillStore
	PositionStore   domain.PositionStore
	SummaryStore    domain.SummaryStore
	ResolutionStore domain.ResolutionStore
	WatermarkStore  domain.WatermarkStore
	MarketStore     domain.MarketStore

	// Cache and locks
	TokenCache  domain.TokenCache
	LockManager domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	// Source client and resolver
	Goldsky  *goldsky.Client
	Resolver *ctf.Resolver
}

// needsGoldsky returns true for modes that fetch from the subgraph.
func needsGoldsky(mode string) bool {
	return mode == "ingest" || mode == "full"
}

// needsS3 returns true for modes that touch snapshot storage.
func needsS3(mode string) bool {
	return mode == "monitor" || mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// must be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.FillStore = postgres.NewFillStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.SummaryStore = postgres.NewSummaryStore(pool)
	deps.ResolutionStore = postgres.NewResolutionStore(pool)
	deps.WatermarkStore = postgres.NewWatermarkStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.TokenCache = redis.NewTokenCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- S3 snapshot storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Subgraph source client ---
	// Monitor mode gets one too when an endpoint is configured, for the
	// ingestion lag check.
	if needsGoldsky(cfg.Mode) || (cfg.Mode == "monitor" && cfg.Goldsky.URL != "") {
		deps.Goldsky = goldsky.NewClient(cfg.Goldsky.URL, cfg.Goldsky.APIKey)
	}

	deps.Resolver = ctf.NewResolver(deps.TokenCache, deps.MarketStore, logger)

	return deps, cleanup, nil
}
