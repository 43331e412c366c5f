package response_models

import (
	"github.com/google/uuid"

	"storefront/internal/models/db_models"
)

type CreateSessionResponse struct {
	RedirectURL         string `json:"redirectUrl"`
	GatewaySessionToken string `json:"gatewaySessionToken"`
	CommerceOrderID     string `json:"commerceOrderId"`
	Total               int64  `json:"total"`
}

type BankDetails struct {
	Holder        string `json:"holder"`
	RUT           string `json:"rut"`
	Bank          string `json:"bank"`
	AccountType   string `json:"accountType"`
	AccountNumber string `json:"accountNumber"`
	ContactEmail  string `json:"contactEmail"`
}

type TransferOrderResponse struct {
	CommerceOrderID string      `json:"commerceOrderId"`
	Total           int64       `json:"total"`
	Bank            BankDetails `json:"bank"`
}

type OrderView struct {
	ID              uuid.UUID            `json:"id"`
	CommerceOrderID string               `json:"commerceOrderId"`
	State           db_models.OrderState `json:"state"`
	PaymentMethod   string               `json:"paymentMethod"`
	Items           []db_models.LineItem `json:"items"`
	Subtotal        int64                `json:"subtotal"`
	ShippingFee     int64                `json:"shippingFee"`
	Discount        int64                `json:"discount"`
	Total           int64                `json:"total"`
	Currency        string               `json:"currency"`
	PayerEmail      string               `json:"payerEmail,omitempty"`
	Meta            db_models.OrderMeta  `json:"meta"`
	CreatedAt       int64                `json:"createdAt"`
	PaidAt          *int64               `json:"paidAt,omitempty"`
}

// Admin listings additionally expose gateway references and diagnostics.
type AdminOrderView struct {
	OrderView
	GatewaySessionToken string      `json:"gatewaySessionToken,omitempty"`
	GatewayOrderID      string      `json:"gatewayOrderId,omitempty"`
	PaymentSnapshot     interface{} `json:"paymentSnapshot,omitempty"`
	Discrepancy         interface{} `json:"discrepancy,omitempty"`
}

type OrderPage struct {
	Items    []AdminOrderView `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

type PaymentReturnView struct {
	CommerceOrderID string `json:"commerceOrderId"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	OrderState      string `json:"orderState,omitempty"`
}

type EmailConfigView struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	From       string `json:"from"`
}

func ToOrderView(o *db_models.Order) OrderView {
	return OrderView{
		ID:              o.ID,
		CommerceOrderID: o.CommerceOrderID,
		State:           o.State,
		PaymentMethod:   string(o.PaymentMethod),
		Items:           o.Items(),
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Discount:        o.Discount,
		Total:           o.Total,
		Currency:        o.Currency,
		PayerEmail:      o.PayerEmail,
		Meta:            o.NormalizedMeta(),
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
	}
}

func ToAdminOrderView(o *db_models.Order) AdminOrderView {
	v := AdminOrderView{
		OrderView:           ToOrderView(o),
		GatewaySessionToken: o.SessionToken(),
		GatewayOrderID:      o.GatewayOrderID,
	}
	if len(o.PaymentSnapshot) > 0 {
		v.PaymentSnapshot = o.PaymentSnapshot
	}
	if len(o.Discrepancy) > 0 {
		v.Discrepancy = o.Discrepancy
	}
	return v
}
