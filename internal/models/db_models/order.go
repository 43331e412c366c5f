package db_models

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

type OrderState string

const (
	OrderStatePending         OrderState = "PENDING"
	OrderStatePaid            OrderState = "PAID"
	OrderStateAmountMismatch  OrderState = "AMOUNT_MISMATCH"
	OrderStatePendingTransfer OrderState = "PENDING_TRANSFER"
)

// IsTerminal reports whether no further automatic transition may leave this state.
func (s OrderState) IsTerminal() bool {
	return s == OrderStatePaid || s == OrderStateAmountMismatch
}

// CanTransitionTo encodes the forward-only state graph.
// AMOUNT_MISMATCH only moves to PAID through an explicit admin action, see AdminCanMarkPaid.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	switch s {
	case OrderStatePending:
		return next == OrderStatePaid || next == OrderStateAmountMismatch
	case OrderStatePendingTransfer:
		return next == OrderStatePaid
	default:
		return false
	}
}

// AdminCanMarkPaid reports whether an operator may settle an order in this state by hand.
func (s OrderState) AdminCanMarkPaid() bool {
	return s == OrderStatePending || s == OrderStatePendingTransfer || s == OrderStateAmountMismatch
}

// ParseOrderState accepts any casing; ok is false for unknown states.
func ParseOrderState(s string) (OrderState, bool) {
	st := OrderState(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case OrderStatePending, OrderStatePaid, OrderStateAmountMismatch, OrderStatePendingTransfer:
		return st, true
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentMethodFlow     PaymentMethod = "flow"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

type LineItem struct {
	ProductRef string `json:"productRef"`
	Name       string `json:"name,omitempty"`
	UnitPrice  int64  `json:"unitPrice"`
	Quantity   int64  `json:"quantity"`
}

type Order struct {
	BaseModel
	CommerceOrderID     string        `gorm:"size:64;uniqueIndex;not null"`
	GatewaySessionToken *string       `gorm:"size:128;uniqueIndex"` // null for transfer orders
	GatewayOrderID      string        `gorm:"size:64"`
	PaymentMethod       PaymentMethod `gorm:"size:16;not null"`
	State               OrderState    `gorm:"size:32;index;not null"`

	LineItems   datatypes.JSON `gorm:"type:jsonb"`
	Subtotal    int64
	ShippingFee int64
	Discount    int64
	Total       int64
	Currency    string `gorm:"size:3"`

	PayerEmail string `gorm:"size:320;index"`
	PayerName  string `gorm:"size:200"`

	// Free-form checkout metadata as submitted; read through NormalizedMeta.
	Meta datatypes.JSON `gorm:"type:jsonb"`

	// Gateway status as last observed, and the diagnostic for AMOUNT_MISMATCH.
	PaymentSnapshot datatypes.JSON `gorm:"type:jsonb"`
	Discrepancy     datatypes.JSON `gorm:"type:jsonb"`

	PaidAt *int64 // unix seconds
}

func (o *Order) Items() []LineItem {
	var items []LineItem
	if len(o.LineItems) == 0 {
		return items
	}
	_ = json.Unmarshal(o.LineItems, &items)
	return items
}

func (o *Order) RawMeta() map[string]interface{} {
	m := map[string]interface{}{}
	if len(o.Meta) == 0 {
		return m
	}
	_ = json.Unmarshal(o.Meta, &m)
	return m
}

func (o *Order) NormalizedMeta() OrderMeta {
	return NormalizeOrderMeta(o.RawMeta())
}

func (o *Order) SessionToken() string {
	if o.GatewaySessionToken == nil {
		return ""
	}
	return *o.GatewaySessionToken
}

// PaymentSnapshotData is the gateway status captured when an order settles.
type PaymentSnapshotData struct {
	Source    string `json:"source"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Payer     string `json:"payer,omitempty"`
	FlowOrder string `json:"flowOrder,omitempty"`
	SeenAt    int64  `json:"seenAt"`
}

// DiscrepancyData records why an order landed in AMOUNT_MISMATCH.
type DiscrepancyData struct {
	Type       string `json:"type"`
	Expected   int64  `json:"expected"`
	Paid       int64  `json:"paid"`
	Difference int64  `json:"difference"`
	Tolerance  int64  `json:"tolerance"`
	DetectedAt int64  `json:"detectedAt"`
}
