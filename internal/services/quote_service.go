package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"storefront/internal/models/db_models"
	"storefront/internal/models/request_models"
	"storefront/pkg/utils"
)

// Caps keep every intermediate sum far inside int64 and float64 integer precision.
const (
	MaxUnitPrice    = 100_000_000
	MaxLineQuantity = 10_000
	maxSubtotal     = 1e12
)

type ShippingConfig struct {
	MetroFee            int64
	MetroRegions        []string
	HomeDeliveryMethods []string
}

type Quote struct {
	Items       []db_models.LineItem
	Subtotal    int64
	ShippingFee int64
	Discount    int64
	Total       int64
}

type QuoteInput struct {
	Items []request_models.LineItemInput
	Meta  db_models.OrderMeta

	// Smallest acceptable total; zero disables the check.
	MinimumAmount int64
}

// DiscountEvaluator is the trusted source of discounts. Client-supplied discounts are never read.
type DiscountEvaluator interface {
	Evaluate(ctx context.Context, items []db_models.LineItem, subtotal int64, meta db_models.OrderMeta) (int64, error)
}

type noDiscount struct{}

func (noDiscount) Evaluate(context.Context, []db_models.LineItem, int64, db_models.OrderMeta) (int64, error) {
	return 0, nil
}

func NewNoDiscountEvaluator() DiscountEvaluator { return noDiscount{} }

type QuoteServiceInterface interface {
	Quote(ctx context.Context, in QuoteInput) (Quote, error)
}

type quoteService struct {
	shipping ShippingConfig
	discount DiscountEvaluator
}

func NewQuoteService(shipping ShippingConfig, discount DiscountEvaluator) QuoteServiceInterface {
	if discount == nil {
		discount = noDiscount{}
	}
	return &quoteService{shipping: shipping, discount: discount}
}

func (q *quoteService) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	if len(in.Items) == 0 {
		return Quote{}, utils.ErrEmptyCart
	}

	items := make([]db_models.LineItem, 0, len(in.Items))
	var raw float64
	for i, it := range in.Items {
		qty, price := it.Count(), it.RawPrice()
		if qty <= 0 || qty > MaxLineQuantity {
			return Quote{}, fmt.Errorf("%w: item %d has quantity %d", utils.ErrInvalidLineItem, i, qty)
		}
		if math.IsNaN(price) || price < 0 || price > MaxUnitPrice {
			return Quote{}, fmt.Errorf("%w: item %d has price %v", utils.ErrInvalidLineItem, i, price)
		}
		raw += price * float64(qty)
		if raw > maxSubtotal {
			return Quote{}, fmt.Errorf("%w: cart subtotal exceeds %d", utils.ErrInvalidLineItem, int64(maxSubtotal))
		}
		items = append(items, db_models.LineItem{
			ProductRef: it.Ref(),
			Name:       it.Name,
			UnitPrice:  it.RoundedPrice(),
			Quantity:   qty,
		})
	}
	// rounded once over the whole cart, not per item
	subtotal := int64(math.Round(raw))

	shipping := q.ShippingFee(in.Meta.Region, in.Meta.DeliveryMethod)

	discount, err := q.discount.Evaluate(ctx, items, subtotal, in.Meta)
	if err != nil {
		return Quote{}, fmt.Errorf("evaluate discount: %w", err)
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal+shipping {
		discount = subtotal + shipping
	}

	quote := Quote{
		Items:       items,
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Discount:    discount,
		Total:       subtotal + shipping - discount,
	}
	if in.MinimumAmount > 0 && quote.Total < in.MinimumAmount {
		return quote, fmt.Errorf("%w: total %d, minimum %d", utils.ErrBelowMinimumAmount, quote.Total, in.MinimumAmount)
	}
	return quote, nil
}

// ShippingFee charges the metro fee only for home delivery inside the metropolitan region.
func (q *quoteService) ShippingFee(region, method string) int64 {
	if q.isMetroRegion(region) && q.isHomeDelivery(method) {
		return q.shipping.MetroFee
	}
	return 0
}

func (q *quoteService) isMetroRegion(region string) bool {
	r := foldText(region)
	if r == "" {
		return false
	}
	if strings.Contains(r, "metropolitana") && strings.Contains(r, "santiago") {
		return true
	}
	for _, alias := range q.shipping.MetroRegions {
		if r == foldText(alias) {
			return true
		}
	}
	return false
}

func (q *quoteService) isHomeDelivery(method string) bool {
	m := foldText(method)
	if m == "" {
		return false
	}
	for _, alias := range q.shipping.HomeDeliveryMethods {
		if m == foldText(alias) {
			return true
		}
	}
	return false
}

// foldText strips accents, lowercases and trims.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
