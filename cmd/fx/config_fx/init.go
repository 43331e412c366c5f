package config_fx

import (
	"log/slog"
	"os"

	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/logging"
)

var Module = fx.Provide(provideConfig, provideLogger)

func provideConfig() (config.Config, error) {
	path := os.Getenv("STOREFRONT_CONFIG")
	if path == "" {
		path = "configs/config.yaml"
	}
	return config.Load(path)
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)
}
