package payment_service_fx

import (
	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/flow"
	"storefront/internal/metrics"
	"storefront/internal/repositories"
	"storefront/internal/services"
	mem "storefront/pkg/memcache"
)

var Module = fx.Provide(
	provideGateway, provideQuoteService, providePaymentService,
)

func provideGateway(cfg config.Config) flow.Gateway {
	return flow.NewClient(flow.Config{
		BaseURL:    cfg.Flow.BaseURL,
		APIKey:     cfg.Flow.APIKey,
		Secret:     cfg.Flow.Secret,
		CommerceID: cfg.Flow.CommerceID,
		Timeout:    cfg.Flow.Timeout,
	})
}

func provideQuoteService(cfg config.Config) services.QuoteServiceInterface {
	return services.NewQuoteService(services.ShippingConfig{
		MetroFee:            cfg.Shipping.MetroFee,
		MetroRegions:        cfg.Shipping.MetroRegions,
		HomeDeliveryMethods: cfg.Shipping.HomeDeliveryMethods,
	}, services.NewNoDiscountEvaluator())
}

func providePaymentService(
	cfg config.Config,
	gateway flow.Gateway,
	repo repositories.OrderRepository,
	ledger mem.TokenLedger,
	quotes services.QuoteServiceInterface,
	publisher events.Publisher,
	m *metrics.PaymentMetrics,
) (services.PaymentService, error) {
	return services.NewPaymentService(services.PaymentConfig{
		PublicBaseURL:         cfg.App.PublicBaseURL,
		ConfirmationURL:       cfg.Flow.ConfirmationURL,
		ReturnURL:             cfg.Flow.ReturnURL,
		Secret:                cfg.Flow.Secret,
		Subject:               cfg.Flow.Subject,
		Currency:              cfg.Flow.Currency,
		FallbackEmail:         cfg.Flow.FallbackEmail,
		MinAmount:             cfg.Flow.MinAmount,
		AmountTolerance:       cfg.Flow.AmountTolerance,
		LedgerTTL:             cfg.Ledger.TTL,
		AllowUnsignedWebhooks: cfg.Flow.AllowUnsignedWebhooks,
	}, gateway, repo, ledger, quotes, publisher, m)
}
