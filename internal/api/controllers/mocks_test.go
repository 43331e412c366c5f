package controllers

import (
	"context"

	"storefront/internal/models/request_models"
	"storefront/internal/models/response_models"
	"storefront/internal/services"
)

type MockPaymentService struct {
	CreateSessionFunc func(ctx context.Context, req request_models.CheckoutRequest) (*response_models.CreateSessionResponse, error)
	ReconcileFunc     func(ctx context.Context, token, signature string) services.ReconcileResult
	ReturnStatusFunc  func(ctx context.Context, token string) (*response_models.PaymentReturnView, error)
}

func (m *MockPaymentService) CreateSession(ctx context.Context, req request_models.CheckoutRequest) (*response_models.CreateSessionResponse, error) {
	return m.CreateSessionFunc(ctx, req)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, token, signature string) services.ReconcileResult {
	return m.ReconcileFunc(ctx, token, signature)
}

func (m *MockPaymentService) ReturnStatus(ctx context.Context, token string) (*response_models.PaymentReturnView, error) {
	return m.ReturnStatusFunc(ctx, token)
}

type MockOrderService struct {
	CreateTransferOrderFunc func(ctx context.Context, req request_models.CheckoutRequest) (*response_models.TransferOrderResponse, error)
	MarkPaidFunc            func(ctx context.Context, ref string) (*response_models.AdminOrderView, error)
	ListByEmailFunc         func(ctx context.Context, email string) ([]response_models.OrderView, error)
	ListAllFunc             func(ctx context.Context, state string, page, pageSize int) (*response_models.OrderPage, error)
}

func (m *MockOrderService) CreateTransferOrder(ctx context.Context, req request_models.CheckoutRequest) (*response_models.TransferOrderResponse, error) {
	return m.CreateTransferOrderFunc(ctx, req)
}

func (m *MockOrderService) MarkPaid(ctx context.Context, ref string) (*response_models.AdminOrderView, error) {
	return m.MarkPaidFunc(ctx, ref)
}

func (m *MockOrderService) ListByEmail(ctx context.Context, email string) ([]response_models.OrderView, error) {
	return m.ListByEmailFunc(ctx, email)
}

func (m *MockOrderService) ListAll(ctx context.Context, state string, page, pageSize int) (*response_models.OrderPage, error) {
	return m.ListAllFunc(ctx, state, page, pageSize)
}

type MockAccountService struct {
	ForgotPasswordFunc        func(ctx context.Context, email string) error
	ResetPasswordFunc         func(ctx context.Context, token, newPassword string) (string, error)
	SendRegistrationEmailFunc func(ctx context.Context, email, name string) error
}

func (m *MockAccountService) ForgotPassword(ctx context.Context, email string) error {
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return m.ResetPasswordFunc(ctx, token, newPassword)
}

func (m *MockAccountService) SendRegistrationEmail(ctx context.Context, email, name string) error {
	return m.SendRegistrationEmailFunc(ctx, email, name)
}

type MockMailService struct {
	ProviderName   string
	NotifyUserFunc func(ctx context.Context, to, subject, body, ctaText, ctaURL string) error
}

func (m *MockMailService) SendMailToNotifyUser(ctx context.Context, to, subject, body, ctaText, ctaURL string) error {
	return m.NotifyUserFunc(ctx, to, subject, body, ctaText, ctaURL)
}

func (m *MockMailService) SendMailToResetPassword(context.Context, string, string) error { return nil }

func (m *MockMailService) SendWelcome(context.Context, string, string) error { return nil }

func (m *MockMailService) SendTemplate(context.Context, string, services.EmailData) error { return nil }

func (m *MockMailService) Provider() string { return m.ProviderName }
