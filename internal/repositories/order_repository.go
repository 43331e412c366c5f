package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront/internal/models/db_models"
)

// OrderPatch lists the columns a state transition may touch. Nil or empty fields are left alone.
type OrderPatch struct {
	State           db_models.OrderState
	GatewayOrderID  string
	PaidAt          *int64
	PaymentSnapshot datatypes.JSON
	Discrepancy     datatypes.JSON

	// AdminOverride lets an operator settle any state AdminCanMarkPaid accepts.
	AdminOverride bool
}

// AllowedFrom reports whether the patch is a legal move out of from.
func (p OrderPatch) AllowedFrom(from db_models.OrderState) bool {
	if p.AdminOverride {
		return p.State == db_models.OrderStatePaid && from.AdminCanMarkPaid()
	}
	return from.CanTransitionTo(p.State)
}

type OrderRepository interface {
	Insert(ctx context.Context, order *db_models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Order, error)
	FindByCommerceOrderID(ctx context.Context, commerceOrderID string) (*db_models.Order, error)
	FindByGatewayToken(ctx context.Context, token string) (*db_models.Order, error)
	FindByEmail(ctx context.Context, email string) ([]db_models.Order, error)
	List(ctx context.Context, state db_models.OrderState, page, pageSize int) ([]db_models.Order, int64, error)

	// UpdateIfState applies patch only while the row is still in expected.
	// It reports false when another writer got there first or the move is not a legal transition.
	UpdateIfState(ctx context.Context, id uuid.UUID, expected db_models.OrderState, patch OrderPatch) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Insert(ctx context.Context, order *db_models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) first(ctx context.Context, query string, args ...interface{}) (*db_models.Order, error) {
	var order db_models.Order
	err := r.db.WithContext(ctx).Where(query, args...).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *orderRepository) FindByCommerceOrderID(ctx context.Context, commerceOrderID string) (*db_models.Order, error) {
	return r.first(ctx, "commerce_order_id = ?", commerceOrderID)
}

func (r *orderRepository) FindByGatewayToken(ctx context.Context, token string) (*db_models.Order, error) {
	return r.first(ctx, "gateway_session_token = ?", token)
}

func (r *orderRepository) FindByEmail(ctx context.Context, email string) ([]db_models.Order, error) {
	var orders []db_models.Order
	err := r.db.WithContext(ctx).
		Where("LOWER(payer_email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) List(ctx context.Context, state db_models.OrderState, page, pageSize int) ([]db_models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&db_models.Order{})
	if state != "" {
		q = q.Where("state = ?", state)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []db_models.Order
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) UpdateIfState(ctx context.Context, id uuid.UUID, expected db_models.OrderState, patch OrderPatch) (bool, error) {
	if !patch.AllowedFrom(expected) {
		return false, nil
	}
	updates := map[string]interface{}{
		"state":      patch.State,
		"updated_at": time.Now().Unix(),
	}
	if patch.GatewayOrderID != "" {
		updates["gateway_order_id"] = patch.GatewayOrderID
	}
	if patch.PaidAt != nil {
		updates["paid_at"] = *patch.PaidAt
	}
	if len(patch.PaymentSnapshot) > 0 {
		updates["payment_snapshot"] = patch.PaymentSnapshot
	}
	if len(patch.Discrepancy) > 0 {
		updates["discrepancy"] = patch.Discrepancy
	}

	res := r.db.WithContext(ctx).
		Model(&db_models.Order{}).
		Where("id = ? AND state = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	// 0 rows: missing row or the state moved on
	return res.RowsAffected > 0, nil
}
