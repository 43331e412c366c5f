package account_fx

import (
	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/services"
	mem "storefront/pkg/memcache"
)

var Module = fx.Provide(provideAccountService)

func provideAccountService(cfg config.Config, mailService services.IMailService, resetTokens mem.ResetTokenStore) services.AccountServiceInterface {
	return services.NewAccountService(mailService, resetTokens, cfg.Mail.ResetTokenTTL)
}
