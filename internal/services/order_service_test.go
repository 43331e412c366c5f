package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/events"
	"storefront/internal/models/db_models"
	"storefront/internal/models/request_models"
	"storefront/internal/models/response_models"
	"storefront/pkg/utils"
)

func newTestOrderService(t *testing.T) (*OrderService, *fakeOrderRepo, *recordingPublisher) {
	t.Helper()
	repo := newFakeOrderRepo()
	pub := &recordingPublisher{}
	svc, err := NewOrderService(TransferConfig{
		Bank:     response_models.BankDetails{Holder: "Tienda SpA", Bank: "Banco Estado", AccountNumber: "123456"},
		Currency: "CLP",
	}, repo, NewQuoteService(testShipping(), nil), pub, testMetrics())
	require.NoError(t, err)

	impl := svc.(*OrderService)
	impl.now = func() time.Time { return time.Unix(1_800_000_000, 0) }
	return impl, repo, pub
}

func TestCreateTransferOrder(t *testing.T) {
	svc, repo, pub := newTestOrderService(t)

	resp, err := svc.CreateTransferOrder(context.Background(), metroCheckout())
	require.NoError(t, err)
	assert.Equal(t, int64(12990), resp.Total)
	assert.Equal(t, "Banco Estado", resp.Bank.Bank)
	assert.Regexp(t, `^ORD-\d+-[0-9A-Z]{6}$`, resp.CommerceOrderID)

	order, _ := repo.FindByCommerceOrderID(context.Background(), resp.CommerceOrderID)
	require.NotNil(t, order)
	assert.Equal(t, db_models.OrderStatePendingTransfer, order.State)
	assert.Equal(t, db_models.PaymentMethodTransfer, order.PaymentMethod)
	assert.Nil(t, order.GatewaySessionToken)
	assert.Equal(t, 1, pub.count(events.TypeTransferOrderCreated))
}

func TestCreateTransferOrder_SmallTotalsAllowed(t *testing.T) {
	svc, _, _ := newTestOrderService(t)
	req := request_models.CheckoutRequest{LineItems: []request_models.LineItemInput{{ProductRef: "p", UnitPrice: 100, Quantity: 1}}}

	resp, err := svc.CreateTransferOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(100), resp.Total)

	_, err = svc.CreateTransferOrder(context.Background(), request_models.CheckoutRequest{})
	assert.True(t, errors.Is(err, utils.ErrEmptyCart))
}

func TestMarkPaid_ByCommerceIDAndUUID(t *testing.T) {
	svc, repo, pub := newTestOrderService(t)
	resp, err := svc.CreateTransferOrder(context.Background(), metroCheckout())
	require.NoError(t, err)

	view, err := svc.MarkPaid(context.Background(), resp.CommerceOrderID)
	require.NoError(t, err)
	assert.Equal(t, db_models.OrderStatePaid, view.State)
	require.NotNil(t, view.PaidAt)
	assert.Equal(t, int64(1_800_000_000), *view.PaidAt)
	assert.Equal(t, 1, pub.count(events.TypeOrderPaid))

	_, err = svc.MarkPaid(context.Background(), view.ID.String())
	assert.True(t, errors.Is(err, utils.ErrOrderAlreadyPaid))
	assert.Equal(t, 1, pub.count(events.TypeOrderPaid))

	order, _ := repo.FindByID(context.Background(), view.ID)
	assert.Equal(t, db_models.OrderStatePaid, order.State)
}

func TestMarkPaid_ResolvesAmountMismatch(t *testing.T) {
	svc, repo, _ := newTestOrderService(t)
	o := &db_models.Order{CommerceOrderID: "ORD-M", State: db_models.OrderStateAmountMismatch, Total: 10000}
	require.NoError(t, repo.Insert(context.Background(), o))

	view, err := svc.MarkPaid(context.Background(), "ORD-M")
	require.NoError(t, err)
	assert.Equal(t, db_models.OrderStatePaid, view.State)
}

func TestMarkPaid_UnknownOrder(t *testing.T) {
	svc, _, _ := newTestOrderService(t)
	_, err := svc.MarkPaid(context.Background(), "ORD-NOPE")
	assert.True(t, errors.Is(err, utils.ErrOrderNotFound))
	_, err = svc.MarkPaid(context.Background(), "")
	assert.True(t, errors.Is(err, utils.ErrOrderNotFound))
}

func TestListByEmail(t *testing.T) {
	svc, repo, _ := newTestOrderService(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &db_models.Order{CommerceOrderID: "A", PayerEmail: "ana@example.com", State: db_models.OrderStatePending}))
	require.NoError(t, repo.Insert(ctx, &db_models.Order{CommerceOrderID: "B", PayerEmail: "ana@example.com", State: db_models.OrderStatePaid}))
	require.NoError(t, repo.Insert(ctx, &db_models.Order{CommerceOrderID: "C", PayerEmail: "otro@example.com", State: db_models.OrderStatePaid}))

	views, err := svc.ListByEmail(ctx, " ANA@example.com ")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "B", views[0].CommerceOrderID)

	_, err = svc.ListByEmail(ctx, "")
	assert.True(t, errors.Is(err, utils.ErrInvalidEmail))
}

func TestListAll_PaginationAndFilter(t *testing.T) {
	svc, repo, _ := newTestOrderService(t)
	ctx := context.Background()
	for i, st := range []db_models.OrderState{db_models.OrderStatePending, db_models.OrderStatePaid, db_models.OrderStatePaid} {
		require.NoError(t, repo.Insert(ctx, &db_models.Order{CommerceOrderID: string(rune('A' + i)), State: st}))
	}

	page, err := svc.ListAll(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "C", page.Items[0].CommerceOrderID)

	page, err = svc.ListAll(ctx, "paid", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	_, err = svc.ListAll(ctx, "", 0, 10)
	assert.True(t, errors.Is(err, utils.ErrInvalidPage))
	_, err = svc.ListAll(ctx, "", 1, 1000)
	assert.True(t, errors.Is(err, utils.ErrInvalidPageSize))
	_, err = svc.ListAll(ctx, "shipped", 1, 10)
	assert.True(t, errors.Is(err, utils.ErrInvalidOrderState))
}
