package order_fx

import (
	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/models/response_models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

var Module = fx.Provide(
	provideBankDetails, provideOrderService, provideNotificationDispatcher,
)

func provideBankDetails(cfg config.Config) response_models.BankDetails {
	return response_models.BankDetails{
		Holder:        cfg.Transfer.BankHolder,
		RUT:           cfg.Transfer.BankRUT,
		Bank:          cfg.Transfer.BankName,
		AccountType:   cfg.Transfer.AccountType,
		AccountNumber: cfg.Transfer.AccountNumber,
		ContactEmail:  cfg.Transfer.ContactEmail,
	}
}

func provideOrderService(
	cfg config.Config,
	bank response_models.BankDetails,
	repo repositories.OrderRepository,
	quotes services.QuoteServiceInterface,
	publisher events.Publisher,
	m *metrics.PaymentMetrics,
) (services.OrderServiceInterface, error) {
	return services.NewOrderService(services.TransferConfig{
		Bank:     bank,
		Currency: cfg.Flow.Currency,
	}, repo, quotes, publisher, m)
}

func provideNotificationDispatcher(
	cfg config.Config,
	bank response_models.BankDetails,
	repo repositories.OrderRepository,
	mail services.IMailService,
	m *metrics.PaymentMetrics,
) *services.NotificationDispatcher {
	return services.NewNotificationDispatcher(repo, mail, bank, cfg.App.FrontendURL, m)
}
