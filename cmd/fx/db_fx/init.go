package db_fx

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/infra"
	"storefront/internal/repositories"
)

var Module = fx.Provide(
	provideDB, provideOrderRepo)

func provideDB(lc fx.Lifecycle, cfg config.Config) (*gorm.DB, error) {
	db, err := infra.InitPostgresql(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.AutoMigrate {
		if err := infra.RunMigrations(db); err != nil {
			infra.ClosePostgresql(db)
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			infra.ClosePostgresql(db)
			return nil
		},
	})
	return db, nil
}

func provideOrderRepo(db *gorm.DB) repositories.OrderRepository {
	return repositories.NewOrderRepository(db)
}
