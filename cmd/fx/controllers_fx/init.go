package controllers_fx

import (
	"go.uber.org/fx"

	"storefront/internal/api/controllers"
	"storefront/internal/config"
	"storefront/internal/services"
)

var Module = fx.Options(
	fx.Provide(providePaymentController),
	fx.Provide(controllers.NewOrderController),
	fx.Provide(controllers.NewAccountController),
	fx.Provide(provideSystemController),
)

func providePaymentController(cfg config.Config, paymentService services.PaymentService) *controllers.PaymentController {
	return controllers.NewPaymentController(paymentService, cfg.App.FrontendURL)
}

func provideSystemController(cfg config.Config, mailService services.IMailService) *controllers.SystemController {
	return controllers.NewSystemController(mailService, cfg.Mail.From)
}
