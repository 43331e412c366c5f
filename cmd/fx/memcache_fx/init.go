package memcache_fx

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/infra"
	mem "storefront/pkg/memcache"
)

var Module = fx.Provide(provideStores)

type Stores struct {
	fx.Out

	Ledger      mem.TokenLedger
	ResetTokens mem.ResetTokenStore
}

// provideStores backs the token ledger and reset tokens by redis when configured,
// otherwise by process memory with a periodic sweeper.
func provideStores(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) (Stores, error) {
	log := logger.With("component", "memcache")

	if cfg.Ledger.Backend == "redis" {
		rdb, err := infra.InitRedis(cfg)
		if err != nil {
			return Stores{}, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				infra.CloseRedis(rdb)
				return nil
			},
		})
		log.Info("token ledger backed by redis", "addr", cfg.Redis.Addr)
		return Stores{
			Ledger:      mem.NewRedisLedger(rdb, ""),
			ResetTokens: mem.NewRedisResetTokens(rdb),
		}, nil
	}

	ledger := mem.NewMemoryLedger()
	resetTokens := mem.NewResetTokens()

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go mem.RunSweeper(ctx, cfg.Ledger.SweepInterval, log, ledger, resetTokens)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	log.Warn("token ledger is in process memory; duplicate protection does not span replicas")
	return Stores{Ledger: ledger, ResetTokens: resetTokens}, nil
}
