package infra

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/config"
	"storefront/internal/logging"
)

func InitPostgresql(cfg config.Config) (*gorm.DB, error) {
	gormLog := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLog = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func ClosePostgresql(db *gorm.DB) {
	log := logging.New("postgres")
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("get database instance", "error", err.Error())
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Error("close database connection", "error", err.Error())
	} else {
		log.Info("PostgreSQL database connection closed")
	}
}
