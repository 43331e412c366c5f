package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models/db_models"
	"storefront/internal/models/request_models"
	"storefront/pkg/utils"
)

func testShipping() ShippingConfig {
	return ShippingConfig{
		MetroFee:            2990,
		MetroRegions:        []string{"MetroRegion"},
		HomeDeliveryMethods: []string{"domicilio", "santiago", "home-delivery"},
	}
}

type fixedDiscount int64

func (f fixedDiscount) Evaluate(context.Context, []db_models.LineItem, int64, db_models.OrderMeta) (int64, error) {
	return int64(f), nil
}

func TestQuote_HappyPathWithMetroShipping(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil)
	q, err := svc.Quote(context.Background(), QuoteInput{
		Items: []request_models.LineItemInput{{ProductRef: "p1", UnitPrice: 10000, Quantity: 1}},
		Meta:  db_models.OrderMeta{Region: "MetroRegion", DeliveryMethod: "home-delivery"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), q.Subtotal)
	assert.Equal(t, int64(2990), q.ShippingFee)
	assert.Equal(t, int64(0), q.Discount)
	assert.Equal(t, int64(12990), q.Total)
}

func TestQuote_RegionMatchingFoldsAccents(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil).(*quoteService)

	cases := []struct {
		region, method string
		want           int64
	}{
		{"Región Metropolitana de Santiago", "domicilio", 2990},
		{"  REGION METROPOLITANA DE SANTIAGO ", "Domicilio", 2990},
		{"metroregion", "home-delivery", 2990},
		{"Región Metropolitana de Santiago", "retiro", 0},
		{"Valparaíso", "domicilio", 0},
		{"Metropolitana", "domicilio", 0},
		{"", "", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, svc.ShippingFee(tc.region, tc.method), "%q / %q", tc.region, tc.method)
	}
}

func TestQuote_LegacyFieldNamesAndRounding(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil)
	q, err := svc.Quote(context.Background(), QuoteInput{
		Items: []request_models.LineItemInput{
			{ID: "a", Price: 1999.6, Qty: 2},
			{ProductRef: "b", UnitPrice: 500, Quantity: 3},
		},
	})
	require.NoError(t, err)
	// 1999.6*2 + 1500 = 5499.2
	assert.Equal(t, int64(3999+500*3), q.Subtotal)
	assert.Equal(t, "a", q.Items[0].ProductRef)
	assert.Equal(t, int64(2000), q.Items[0].UnitPrice)
}

func TestQuote_SubtotalIsRoundedOncePerCart(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil)

	cases := []struct {
		items []request_models.LineItemInput
		want  int64
	}{
		{[]request_models.LineItemInput{{ProductRef: "a", UnitPrice: 1999.6, Quantity: 2}}, 3999},
		{[]request_models.LineItemInput{{ProductRef: "a", UnitPrice: 10.4, Quantity: 100}}, 1040},
		{[]request_models.LineItemInput{
			{ProductRef: "a", UnitPrice: 0.3, Quantity: 1},
			{ProductRef: "b", UnitPrice: 0.3, Quantity: 1},
			{ProductRef: "c", UnitPrice: 999.5, Quantity: 1},
		}, 1000},
	}
	for _, tc := range cases {
		q, err := svc.Quote(context.Background(), QuoteInput{Items: tc.items})
		require.NoError(t, err)
		assert.Equal(t, tc.want, q.Subtotal)
		assert.Equal(t, tc.want, q.Total)
	}
}

func TestQuote_RejectsOutOfRangeLineItems(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil)

	cases := map[string]request_models.LineItemInput{
		"huge price":     {ProductRef: "a", UnitPrice: 1e19, Quantity: 1},
		"price over cap": {ProductRef: "a", UnitPrice: MaxUnitPrice + 1, Quantity: 1},
		"huge quantity":  {ProductRef: "a", UnitPrice: 1000, Quantity: 1 << 62},
		"zero quantity":  {ProductRef: "a", UnitPrice: 1000, Quantity: 0},
		"negative price": {ProductRef: "a", UnitPrice: -1, Quantity: 1},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Quote(context.Background(), QuoteInput{Items: []request_models.LineItemInput{item}})
			assert.ErrorIs(t, err, utils.ErrInvalidLineItem)
		})
	}

	// each line within caps, the cart beyond the subtotal ceiling
	big := make([]request_models.LineItemInput, 1001)
	for i := range big {
		big[i] = request_models.LineItemInput{ProductRef: "a", UnitPrice: MaxUnitPrice, Quantity: MaxLineQuantity}
	}
	_, err := svc.Quote(context.Background(), QuoteInput{Items: big})
	assert.ErrorIs(t, err, utils.ErrInvalidLineItem)
}

func TestQuote_TotalInvariantAndDiscountClamp(t *testing.T) {
	items := []request_models.LineItemInput{{ProductRef: "p", UnitPrice: 1000, Quantity: 2}}
	meta := db_models.OrderMeta{Region: "MetroRegion", DeliveryMethod: "domicilio"}

	for _, d := range []int64{-50, 0, 500, 4990, 100000} {
		svc := NewQuoteService(testShipping(), fixedDiscount(d))
		q, err := svc.Quote(context.Background(), QuoteInput{Items: items, Meta: meta})
		require.NoError(t, err)
		assert.Equal(t, q.Subtotal+q.ShippingFee-q.Discount, q.Total)
		assert.GreaterOrEqual(t, q.Total, int64(0))
		assert.GreaterOrEqual(t, q.Discount, int64(0))
	}
}

func TestQuote_IsDeterministic(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil)
	in := QuoteInput{
		Items: []request_models.LineItemInput{{ProductRef: "p1", UnitPrice: 3333, Quantity: 3}},
		Meta:  db_models.OrderMeta{Region: "Región Metropolitana de Santiago", DeliveryMethod: "santiago"},
	}
	first, err := svc.Quote(context.Background(), in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Quote(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQuote_Errors(t *testing.T) {
	svc := NewQuoteService(testShipping(), nil)
	ctx := context.Background()

	_, err := svc.Quote(ctx, QuoteInput{})
	assert.True(t, errors.Is(err, utils.ErrEmptyCart))

	_, err = svc.Quote(ctx, QuoteInput{Items: []request_models.LineItemInput{{UnitPrice: 100, Quantity: 0}}})
	assert.True(t, errors.Is(err, utils.ErrInvalidLineItem))

	_, err = svc.Quote(ctx, QuoteInput{Items: []request_models.LineItemInput{{UnitPrice: -1, Quantity: 1}}})
	assert.True(t, errors.Is(err, utils.ErrInvalidLineItem))

	q, err := svc.Quote(ctx, QuoteInput{
		Items:         []request_models.LineItemInput{{UnitPrice: 100, Quantity: 1}},
		MinimumAmount: 350,
	})
	assert.True(t, errors.Is(err, utils.ErrBelowMinimumAmount))
	assert.Equal(t, int64(100), q.Total)
}
