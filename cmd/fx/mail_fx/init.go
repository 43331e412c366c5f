package mail_fx

import (
	"log/slog"

	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/services"
)

var Module = fx.Provide(provideMailService)

func provideMailService(cfg config.Config, logger *slog.Logger) (services.IMailService, error) {
	mc := services.MailConfig{
		Provider: cfg.Mail.Provider,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		AppName:  cfg.Mail.AppName,
		SMTP: services.SMTPConfig{
			Host:       cfg.Mail.SMTPHost,
			Port:       cfg.Mail.SMTPPort,
			Username:   cfg.Mail.SMTPUser,
			Password:   cfg.Mail.SMTPPassword,
			UseSSL:     cfg.Mail.SMTPUseSSL,
			RequireTLS: !cfg.Mail.SMTPUseSSL,
		},
		SendGridAPIKey: cfg.Mail.SendGridAPIKey,
		ResendAPIKey:   cfg.Mail.ResendAPIKey,
		ResetPageURL:   cfg.Mail.ResetPageURL,
	}
	if mc.ResetPageURL == "" {
		mc.ResetPageURL = cfg.App.FrontendURL + "/reset-password.html"
	}

	mailer := services.NewMailer(mc, logger.With("component", "mail"))
	logger.Info("mail provider selected", "provider", mailer.Name())
	return services.NewMailService(mc, mailer)
}
