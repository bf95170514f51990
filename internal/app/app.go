// Package app wires configuration, storage and the security services.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/audit"
	"github.com/iudanet/tradeguard/internal/config"
	"github.com/iudanet/tradeguard/internal/credentials"
	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/exchange"
	"github.com/iudanet/tradeguard/internal/metrics"
	"github.com/iudanet/tradeguard/internal/ratelimit"
	"github.com/iudanet/tradeguard/internal/session"
	"github.com/iudanet/tradeguard/internal/storage"
	"github.com/iudanet/tradeguard/internal/storage/boltdb"
	"github.com/iudanet/tradeguard/internal/storage/sqlite"
	"github.com/iudanet/tradeguard/internal/trade"
	"github.com/iudanet/tradeguard/internal/validation"
	"github.com/iudanet/tradeguard/internal/vault"
)

// App holds the wired services. Close releases them in reverse order.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Storage     *sqlite.Storage
	Credentials *credentials.Store
	Sessions    *session.Manager
	Vault       *vault.Vault
	Validator   *validation.Validator
	Limiter     *ratelimit.Limiter
	Audit       *audit.Logger
	Trades      *trade.Service

	closers []func() error
}

// New builds the application from a validated configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	masterKey, err := cfg.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("vault master key: %w", err)
	}
	defer crypto.Wipe(masterKey)

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	perms, err := cfg.Permissions()
	if err != nil {
		return nil, err
	}

	a.Storage, err = sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Storage.Close)

	wallets, err := a.walletStore(ctx)
	if err != nil {
		return nil, err
	}

	a.Credentials, err = credentials.NewStore(a.Storage, credentials.Config{
		Logger:             logger.Named("credentials"),
		MasterKey:          masterKey,
		DefaultPermissions: perms,
		BcryptCost:         cfg.Auth.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	a.Sessions = session.NewManager(a.Credentials, a.Storage, session.Config{
		Logger:  logger.Named("session"),
		Metrics: a.Metrics,
		TTL:     cfg.Auth.SessionTTL,
	})

	a.Vault, err = vault.New(wallets, masterKey, vault.Config{
		Logger:  logger.Named("vault"),
		Metrics: a.Metrics,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.Vault.Close(); return nil })

	limStore, err := a.limiterStore()
	if err != nil {
		return nil, err
	}
	a.Limiter = ratelimit.New(limStore, ratelimit.Config{
		Endpoints: endpointLimits(cfg.RateLimit.Endpoints),
		Logger:    logger.Named("ratelimit"),
		Metrics:   a.Metrics,
		Default:   ratelimit.Limit{Limit: cfg.RateLimit.DefaultLimit, Window: cfg.RateLimit.Window},
	})

	a.Validator = validation.New(policy)
	a.Audit = audit.NewLogger(a.Storage, audit.Config{Logger: logger.Named("audit")})

	a.Trades, err = trade.NewService(trade.Config{
		Validator:   a.Validator,
		Limiter:     a.Limiter,
		Signer:      a.Vault,
		Credentials: a.Credentials,
		Auditor:     a.Audit,
		Logger:      logger.Named("trade"),
		Metrics:     a.Metrics,
		Endpoint:    exchange.Endpoint{Method: cfg.Exchange.OrderMethod, Path: cfg.Exchange.OrderPath},
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *App) walletStore(ctx context.Context) (storage.WalletStorage, error) {
	switch a.Config.WalletStore.Driver {
	case config.WalletStoreBolt:
		s, err := boltdb.New(ctx, a.Config.WalletStore.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.WalletStoreSQLite, "":
		return a.Storage, nil
	default:
		return nil, fmt.Errorf("unknown wallet store driver %q", a.Config.WalletStore.Driver)
	}
}

func (a *App) limiterStore() (ratelimit.Store, error) {
	switch a.Config.RateLimit.Backend {
	case config.RateLimitRedis:
		opts, err := redis.ParseURL(a.Config.RateLimit.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid rate_limit.redis_url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		return ratelimit.NewRedisStore(client, ""), nil
	case config.RateLimitMemory, "":
		s := ratelimit.NewMemoryStore(nil, a.Config.RateLimit.Window)
		a.closers = append(a.closers, func() error { s.Stop(); return nil })
		return s, nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", a.Config.RateLimit.Backend)
	}
}

func endpointLimits(in map[string]config.EndpointLimit) map[string]ratelimit.Limit {
	out := make(map[string]ratelimit.Limit, len(in))
	for name, l := range in {
		out[name] = ratelimit.Limit{Limit: l.Limit, Window: l.Window}
	}
	return out
}

// Close writes the metrics textfile when configured and releases resources.
func (a *App) Close() error {
	var errs []error

	if path := a.Config.Metrics.Textfile; path != "" && a.Metrics != nil {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}
