package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kjannette/stockagg/internal/api"
	"github.com/kjannette/stockagg/internal/cache"
	"github.com/kjannette/stockagg/internal/config"
	"github.com/kjannette/stockagg/internal/db"
	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/guard"
	"github.com/kjannette/stockagg/internal/notifications"
	"github.com/kjannette/stockagg/internal/repository"
	"github.com/kjannette/stockagg/internal/scheduler"
	"github.com/kjannette/stockagg/internal/stocks"
)

const redisKeyPrefix = "stockagg:"

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Stocks   *stocks.Service
	Exchange *external.ExchangeClient    // nil in mock mode
	Archive  *repository.ObservationRepo // nil when archiving is disabled
	Alerter  *notifications.Alerter
	Breaker  *guard.Breaker

	store  cache.Store
	memory *cache.MemoryStore
	rdb    *redis.Client
	pool   *pgxpool.Pool
}

// Build connects the optional backends and assembles the source chain
// exchange -> breaker -> archive recorder -> cache -> stock service.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	a.Alerter = notifications.NewAlerter(cfg.WebhookURL, cfg.ServiceName, 0)

	if cfg.ArchiveEnabled {
		fmt.Printf("[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err := db.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("archive schema: %w", err)
		}
		a.pool = pool
		a.Archive = repository.NewObservationRepo(pool)
		fmt.Println("[ARCHIVE] Observation archive ready")
	}

	a.store = a.buildStore(ctx)

	opts := stocks.Options{
		Mock:     external.NewMockSource(),
		Alerts:   a.Alerter,
		UseMock:  cfg.UseMockData,
		Fallback: cfg.MockFallback,
	}
	if a.Archive != nil {
		opts.Archive = a.Archive
	}

	if !cfg.UseMockData {
		a.Exchange = external.NewExchangeClient(external.ExchangeOptions{
			BaseURL:  cfg.ExchangeBaseURL,
			APIKey:   cfg.ExchangeAPIKey,
			TokenURL: cfg.ExchangeTokenURL,
			Credentials: external.Credentials{
				Email:        cfg.AuthEmail,
				Password:     cfg.AuthPassword,
				ClientID:     cfg.AuthClientID,
				ClientSecret: cfg.AuthClientSecret,
			},
		})
		a.acquireToken(ctx)

		a.Breaker = guard.NewBreaker(guard.Limits{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Cooldown:         time.Duration(cfg.BreakerCooldownSeconds) * time.Second,
		})

		var live external.PriceSource = guard.NewGuardedSource(a.Exchange, a.Breaker)
		if a.Archive != nil {
			live = stocks.NewArchivingSource(live, a.Archive)
		}
		opts.Live = cache.NewCachedSource(live, a.store,
			time.Duration(cfg.CacheTTLSeconds)*time.Second,
			time.Duration(cfg.PriceCacheTTLSeconds)*time.Second)
	}

	a.Stocks = stocks.NewService(opts)
	fmt.Printf("[STOCKS] Service ready (mode: %s, cache: %s)\n", a.Stocks.Mode(), a.store.Name())
	return a, nil
}

// buildStore prefers Redis when configured and reachable, else memory.
func (a *App) buildStore(ctx context.Context) cache.Store {
	if a.Config.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		if err == nil {
			a.rdb = rdb
			fmt.Printf("[CACHE] Using redis at %s\n", a.Config.RedisAddr)
			return cache.NewRedisStore(rdb, redisKeyPrefix)
		}
		fmt.Printf("[CACHE] Redis unavailable (%v), falling back to memory\n", err)
	}
	a.memory = cache.NewMemoryStore()
	return a.memory
}

func (a *App) acquireToken(ctx context.Context) {
	if a.Config.ExchangeAPIKey != "" || !a.Exchange.CanAuthenticate() {
		return
	}
	if err := a.Exchange.RefreshToken(ctx); err != nil {
		fmt.Printf("[EXCHANGE] Initial token request failed: %v\n", err)
		if a.Config.MockFallback {
			fmt.Println("[EXCHANGE] Continuing; requests will fall back when the exchange rejects them")
		}
		return
	}
	fmt.Println("[EXCHANGE] Bearer token acquired")
}

// Scheduler returns a maintenance scheduler for whichever backends exist.
func (a *App) Scheduler() *scheduler.Scheduler {
	jobs := scheduler.Jobs{Alerts: a.Alerter}
	if a.Exchange != nil && a.Config.ExchangeAPIKey == "" && a.Exchange.CanAuthenticate() {
		jobs.Tokens = a.Exchange
	}
	if a.Archive != nil {
		jobs.Archive = a.Archive
	}
	if a.memory != nil {
		jobs.Cache = a.memory
	}
	return scheduler.New(scheduler.Config{
		TokenRefreshCron: a.Config.TokenRefreshCron,
		ArchivePruneCron: a.Config.ArchivePruneCron,
		Retention:        time.Duration(a.Config.ArchiveRetentionHours) * time.Hour,
	}, jobs)
}

// HealthChecks reports the backends the /health endpoint should probe.
func (a *App) HealthChecks() map[string]api.Check {
	checks := map[string]api.Check{}
	if a.Breaker != nil {
		checks["exchange"] = func(context.Context) error {
			if a.Breaker.Open() {
				return guard.ErrOpen
			}
			return nil
		}
	}
	if a.rdb != nil {
		store := a.store.(*cache.RedisStore)
		checks["cache"] = store.Ping
	}
	if a.Archive != nil {
		checks["archive"] = a.Archive.Ping
	}
	return checks
}

// Close flushes pending alerts and releases the backends.
func (a *App) Close() {
	a.Alerter.Wait()
	if a.rdb != nil {
		a.rdb.Close()
		fmt.Println("[CACHE] Redis client closed")
	}
	if a.pool != nil {
		a.pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}
}
