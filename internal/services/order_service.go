package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models/db_models"
	"storefront/internal/models/request_models"
	"storefront/internal/models/response_models"
	"storefront/internal/repositories"
	"storefront/pkg/utils"
)

const maxPageSize = 100

type TransferConfig struct {
	Bank     response_models.BankDetails
	Currency string
}

type OrderServiceInterface interface {
	CreateTransferOrder(ctx context.Context, req request_models.CheckoutRequest) (*response_models.TransferOrderResponse, error)
	MarkPaid(ctx context.Context, ref string) (*response_models.AdminOrderView, error)
	ListByEmail(ctx context.Context, email string) ([]response_models.OrderView, error)
	ListAll(ctx context.Context, state string, page, pageSize int) (*response_models.OrderPage, error)
}

type OrderService struct {
	cfg       TransferConfig
	repo      repositories.OrderRepository
	quotes    QuoteServiceInterface
	publisher events.Publisher
	metrics   *metrics.PaymentMetrics

	newOrderID func() string
	now        func() time.Time
}

func NewOrderService(
	cfg TransferConfig,
	repo repositories.OrderRepository,
	quotes QuoteServiceInterface,
	publisher events.Publisher,
	m *metrics.PaymentMetrics,
) (OrderServiceInterface, error) {
	newOrderID, err := commerceOrderIDs()
	if err != nil {
		return nil, err
	}
	return &OrderService{
		cfg:        cfg,
		repo:       repo,
		quotes:     quotes,
		publisher:  publisher,
		metrics:    m,
		newOrderID: newOrderID,
		now:        time.Now,
	}, nil
}

func (s *OrderService) CreateTransferOrder(ctx context.Context, req request_models.CheckoutRequest) (*response_models.TransferOrderResponse, error) {
	meta := db_models.NormalizeOrderMeta(req.Meta)
	// no gateway minimum on this path, but the order must be worth something
	quote, err := s.quotes.Quote(ctx, QuoteInput{Items: req.Cart(), Meta: meta, MinimumAmount: 1})
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.PayerEmail())
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, utils.ErrInvalidEmail
		}
	}

	itemsJSON, err := json.Marshal(quote.Items)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(req.Meta)
	if err != nil {
		return nil, err
	}

	order := &db_models.Order{
		CommerceOrderID: s.newOrderID(),
		PaymentMethod:   db_models.PaymentMethodTransfer,
		State:           db_models.OrderStatePendingTransfer,
		LineItems:       itemsJSON,
		Subtotal:        quote.Subtotal,
		ShippingFee:     quote.ShippingFee,
		Discount:        quote.Discount,
		Total:           quote.Total,
		Currency:        s.cfg.Currency,
		PayerEmail:      email,
		PayerName:       meta.Name,
		Meta:            metaJSON,
	}
	if err := s.repo.Insert(ctx, order); err != nil {
		logging.FromCtx(ctx).Error("persist transfer order failed", "error", err.Error())
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	s.metrics.TransferOrdersCreated.Inc()
	logging.FromCtx(ctx).Info("transfer order created", "commerce_order_id", order.CommerceOrderID, "total", order.Total)
	s.publisher.Publish(ctx, events.NewEvent(events.TypeTransferOrderCreated, order.ID, order.CommerceOrderID, order.Total, "transfer"))

	return &response_models.TransferOrderResponse{
		CommerceOrderID: order.CommerceOrderID,
		Total:           order.Total,
		Bank:            s.cfg.Bank,
	}, nil
}

// MarkPaid settles an order by hand. ref is the row id or the commerce order id.
func (s *OrderService) MarkPaid(ctx context.Context, ref string) (*response_models.AdminOrderView, error) {
	order, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.State == db_models.OrderStatePaid {
		return nil, utils.ErrOrderAlreadyPaid
	}
	if !order.State.AdminCanMarkPaid() {
		return nil, utils.ErrOrderStateConflict
	}

	now := s.now()
	paidAt := now.Unix()
	snapshot, _ := json.Marshal(db_models.PaymentSnapshotData{
		Source: "admin",
		Status: string(db_models.OrderStatePaid),
		Amount: order.Total,
		SeenAt: paidAt,
	})
	ok, err := s.repo.UpdateIfState(ctx, order.ID, order.State, repositories.OrderPatch{
		State:           db_models.OrderStatePaid,
		PaidAt:          &paidAt,
		PaymentSnapshot: snapshot,
		AdminOverride:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if !ok {
		return nil, utils.ErrOrderStateConflict
	}

	logging.FromCtx(ctx).Warn("order marked paid by admin",
		"commerce_order_id", order.CommerceOrderID, "previous_state", order.State, "total", order.Total)
	s.metrics.OrdersPaidAmount.Add(float64(order.Total))
	s.publisher.Publish(ctx, events.NewEvent(events.TypeOrderPaid, order.ID, order.CommerceOrderID, order.Total, "admin"))

	updated, err := s.repo.FindByID(ctx, order.ID)
	if err != nil || updated == nil {
		order.State = db_models.OrderStatePaid
		order.PaidAt = &paidAt
		updated = order
	}
	view := response_models.ToAdminOrderView(updated)
	return &view, nil
}

func (s *OrderService) resolve(ctx context.Context, ref string) (*db_models.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, utils.ErrOrderNotFound
	}

	var (
		order *db_models.Order
		err   error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		order, err = s.repo.FindByID(ctx, id)
	} else {
		order, err = s.repo.FindByCommerceOrderID(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if order == nil {
		return nil, utils.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListByEmail(ctx context.Context, email string) ([]response_models.OrderView, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, utils.ErrInvalidEmail
	}

	orders, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	out := make([]response_models.OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, response_models.ToOrderView(&orders[i]))
	}
	return out, nil
}

func (s *OrderService) ListAll(ctx context.Context, state string, page, pageSize int) (*response_models.OrderPage, error) {
	if page < 1 {
		return nil, utils.ErrInvalidPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return nil, utils.ErrInvalidPageSize
	}

	var filter db_models.OrderState
	if strings.TrimSpace(state) != "" {
		st, ok := db_models.ParseOrderState(state)
		if !ok {
			return nil, utils.ErrInvalidOrderState
		}
		filter = st
	}

	orders, total, err := s.repo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	items := make([]response_models.AdminOrderView, 0, len(orders))
	for i := range orders {
		items = append(items, response_models.ToAdminOrderView(&orders[i]))
	}
	return &response_models.OrderPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
