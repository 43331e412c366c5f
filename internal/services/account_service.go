package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/logging"
	mem "storefront/pkg/memcache"
	"storefront/pkg/utils"
)

const resetTokenLength = 32

type AccountServiceInterface interface {
	// ForgotPassword never reveals whether the address is known; mail failures are logged only.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	SendRegistrationEmail(ctx context.Context, email, name string) error
}

type AccountService struct {
	mailService IMailService
	resetTokens mem.ResetTokenStore
	tokenTTL    time.Duration
}

func NewAccountService(mailService IMailService, resetTokens mem.ResetTokenStore, tokenTTL time.Duration) AccountServiceInterface {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AccountService{
		mailService: mailService,
		resetTokens: resetTokens,
		tokenTTL:    tokenTTL,
	}
}

func (a *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.ErrInvalidEmail
	}

	token, err := utils.GenerateSecureToken(resetTokenLength)
	if err != nil {
		return err
	}
	if err := a.resetTokens.Set(ctx, token, email, a.tokenTTL); err != nil {
		return utils.ErrDatabaseError
	}

	if err := a.mailService.SendMailToResetPassword(ctx, email, token); err != nil {
		logging.FromCtx(ctx).Warn("password recovery mail failed", "provider", a.mailService.Provider(), "error", err.Error())
	}
	return nil
}

func (a *AccountService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return "", utils.ErrInvalidResetToken
	}

	email, err := a.resetTokens.Consume(ctx, token)
	if err != nil {
		return "", utils.ErrDatabaseError
	}
	if email == "" {
		return "", utils.ErrInvalidResetToken
	}

	// credentials live with the storefront identity provider
	logging.FromCtx(ctx).Info("password reset token redeemed", "email", email)
	return email, nil
}

func (a *AccountService) SendRegistrationEmail(ctx context.Context, email, name string) error {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.ErrInvalidEmail
	}
	return a.mailService.SendWelcome(ctx, email, name)
}
