package request_models

import "math"

// LineItemInput accepts both the current field names and the ones older storefront builds send.
type LineItemInput struct {
	ProductRef string  `json:"productRef"`
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unitPrice"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	Qty        int64   `json:"qty"`
}

func (l LineItemInput) Ref() string {
	if l.ProductRef != "" {
		return l.ProductRef
	}
	return l.ID
}

// RoundedPrice is the unit price kept in the order's line-item snapshot.
// Totals are computed from RawPrice and rounded once per cart.
func (l LineItemInput) RoundedPrice() int64 {
	p := l.UnitPrice
	if p == 0 {
		p = l.Price
	}
	return int64(math.Round(p))
}

func (l LineItemInput) RawPrice() float64 {
	if l.UnitPrice != 0 {
		return l.UnitPrice
	}
	return l.Price
}

func (l LineItemInput) Count() int64 {
	if l.Quantity != 0 {
		return l.Quantity
	}
	return l.Qty
}

type PayerInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type CheckoutRequest struct {
	LineItems []LineItemInput `json:"lineItems"`
	Items     []LineItemInput `json:"items"`
	Payer     PayerInput      `json:"payer"`
	Email     string          `json:"email"`

	// Client shipping figure. Logged when it disagrees with the server quote, never used.
	ShippingCost *float64 `json:"shippingCost"`

	Meta map[string]interface{} `json:"meta"`
}

func (r CheckoutRequest) Cart() []LineItemInput {
	if len(r.LineItems) > 0 {
		return r.LineItems
	}
	return r.Items
}

func (r CheckoutRequest) PayerEmail() string {
	if r.Payer.Email != "" {
		return r.Payer.Email
	}
	return r.Email
}

// ConfirmationRequest is the body of the gateway callback.
type ConfirmationRequest struct {
	Token     string `json:"token" form:"token"`
	Signature string `json:"signature" form:"signature"`
	S         string `json:"s" form:"s"`
}

func (r ConfirmationRequest) Sig() string {
	if r.Signature != "" {
		return r.Signature
	}
	return r.S
}
