package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/profile/memstore"
	"github.com/MrEthical07/goSession/profile/postgres"
	"github.com/MrEthical07/goSession/profile/sqlite"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/provider/gotrue"
	"github.com/MrEthical07/goSession/provider/providertest"
	"github.com/MrEthical07/goSession/session"
)

// backendFlags select the profile store and identity provider.
type backendFlags struct {
	databaseURL string
	migrate     bool
	sqlitePath  string

	gotrueURL        string
	gotrueAPIKey     string
	gotrueServiceKey string
	redisAddr        string
	cacheGrace       time.Duration
}

func (b *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.databaseURL, "database-url", "", "PostgreSQL URL for profiles")
	cmd.Flags().BoolVar(&b.migrate, "migrate", true, "apply profile migrations on start (PostgreSQL only)")
	cmd.Flags().StringVar(&b.sqlitePath, "sqlite", "", "SQLite file for profiles")
	cmd.Flags().StringVar(&b.gotrueURL, "gotrue-url", "", "GoTrue auth server URL; the in-memory provider is used when empty")
	cmd.Flags().StringVar(&b.gotrueAPIKey, "gotrue-api-key", "", "GoTrue anon key")
	cmd.Flags().StringVar(&b.gotrueServiceKey, "gotrue-service-key", "", "GoTrue service key, required for account deletion")
	cmd.Flags().StringVar(&b.redisAddr, "redis-addr", "", "Redis address for the restart session cache")
	cmd.Flags().DurationVar(&b.cacheGrace, "cache-grace", 24*time.Hour, "how long a cached session outlives its access token")
}

// openStore returns the selected profile store and a cleanup func.
func (b *backendFlags) openStore(ctx context.Context, logger *slog.Logger) (profile.Store, func(), error) {
	switch {
	case b.databaseURL != "":
		if b.migrate {
			m, err := postgres.NewMigrator(b.databaseURL)
			if err != nil {
				return nil, nil, err
			}
			err = m.Up()
			_ = m.Close()
			if err != nil {
				return nil, nil, err
			}
		}
		pool, err := pgxpool.New(ctx, b.databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.InfoContext(ctx, "profile store", "backend", "postgres")
		return postgres.New(pool), pool.Close, nil
	case b.sqlitePath != "":
		st, err := sqlite.Open(b.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "profile store", "backend", "sqlite", "path", b.sqlitePath)
		return st, func() { _ = st.Close() }, nil
	default:
		logger.InfoContext(ctx, "profile store", "backend", "memory")
		return memstore.New(), func() {}, nil
	}
}

// openGateway returns the selected identity provider. fake is non-nil only
// when the in-memory provider was chosen.
func (b *backendFlags) openGateway(logger *slog.Logger) (provider.Gateway, *providertest.Fake, func(), error) {
	if b.gotrueURL == "" {
		fake := providertest.New()
		logger.Info("identity provider", "backend", "memory")
		return fake, fake, func() {}, nil
	}

	var (
		cache   session.Cache = session.NewMemoryCache()
		cleanup               = func() {}
	)
	if b.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: b.redisAddr})
		cache = session.NewRedisCache(rdb, "", b.cacheGrace)
		cleanup = func() { _ = rdb.Close() }
	}

	gw, err := gotrue.New(gotrue.Config{
		BaseURL:    b.gotrueURL,
		APIKey:     b.gotrueAPIKey,
		ServiceKey: b.gotrueServiceKey,
		Cache:      cache,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	logger.Info("identity provider", "backend", "gotrue", "url", b.gotrueURL)
	return gw, nil, cleanup, nil
}
