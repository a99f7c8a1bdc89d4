package app

import (
	"context"
	"fmt"
	"strings"

	s3blob "github.com/estatedesk/brokercycle/internal/blob/s3"
	"github.com/estatedesk/brokercycle/internal/cache/redis"
	"github.com/estatedesk/brokercycle/internal/config"
	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	PropertyStore    domain.PropertyStore
	SellStore        domain.SellCycleStore
	PurchaseStore    domain.PurchaseCycleStore
	RentStore        domain.RentCycleStore
	TransactionStore domain.TransactionStore
	TxRunner         domain.TxRunner

	// Redis
	StatusCache domain.StatusCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver
}

// needsS3 returns true when the configuration requires object storage: the
// archive mode always does, and the run mode does when archiving is enabled.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled || strings.ToLower(cfg.Mode) == "archive"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
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
	sells := postgres.NewSellCycleStore(pool)
	purchases := postgres.NewPurchaseCycleStore(pool)
	rents := postgres.NewRentCycleStore(pool)
	transactions := postgres.NewTransactionStore(pool)

	deps.PropertyStore = postgres.NewPropertyStore(pool)
	deps.SellStore = sells
	deps.PurchaseStore = purchases
	deps.RentStore = rents
	deps.TransactionStore = transactions
	deps.TxRunner = postgres.NewTxRunner(pool)

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

	deps.StatusCache = redis.NewStatusCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only when archiving is in play) ---
	if needsS3(cfg) {
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			sells,
			purchases,
			rents,
			transactions,
			cfg.Archive.Prefix,
		)
	}

	return deps, cleanup, nil
}
