package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models/db_models"
	"storefront/internal/models/response_models"
	"storefront/internal/repositories"
)

// NotificationDispatcher turns order events into customer emails. Delivery is best effort:
// failures are logged and counted, never returned to the payment flow.
type NotificationDispatcher struct {
	repo      repositories.OrderRepository
	mail      IMailService
	bank      response_models.BankDetails
	ordersURL string
	metrics   *metrics.PaymentMetrics
	log       *slog.Logger
}

func NewNotificationDispatcher(
	repo repositories.OrderRepository,
	mail IMailService,
	bank response_models.BankDetails,
	frontendURL string,
	m *metrics.PaymentMetrics,
) *NotificationDispatcher {
	ordersURL := ""
	if frontendURL != "" {
		ordersURL = strings.TrimRight(frontendURL, "/") + "/mis-pedidos.html"
	}
	return &NotificationDispatcher{
		repo:      repo,
		mail:      mail,
		bank:      bank,
		ordersURL: ordersURL,
		metrics:   m,
		log:       logging.New("notifications"),
	}
}

func (d *NotificationDispatcher) Register(bus *events.Bus) {
	bus.Subscribe(events.TypeOrderPaid, d.onOrderPaid)
	bus.Subscribe(events.TypeTransferOrderCreated, d.onTransferOrderCreated)
}

func (d *NotificationDispatcher) onOrderPaid(ctx context.Context, e events.Event) error {
	order, err := d.load(ctx, e)
	if err != nil || order == nil {
		return err
	}
	d.NotifyPaid(ctx, order)
	return nil
}

func (d *NotificationDispatcher) onTransferOrderCreated(ctx context.Context, e events.Event) error {
	order, err := d.load(ctx, e)
	if err != nil || order == nil {
		return err
	}
	d.NotifyTransferInstructions(ctx, order)
	return nil
}

func (d *NotificationDispatcher) load(ctx context.Context, e events.Event) (*db_models.Order, error) {
	order, err := d.repo.FindByID(ctx, e.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", e.CommerceOrderID, err)
	}
	if order == nil {
		d.log.Warn("event for unknown order", "event_type", e.Type, "commerce_order_id", e.CommerceOrderID)
	}
	return order, nil
}

// NotifyPaid sends the payment confirmation.
func (d *NotificationDispatcher) NotifyPaid(ctx context.Context, order *db_models.Order) {
	data := EmailData{
		Title: "Confirmación de pago - " + order.CommerceOrderID,
		Intro: "¡Gracias por tu compra! Recibimos tu pago y ya estamos preparando tu pedido.",
		Rows:  d.summaryRows(order),
	}
	if d.ordersURL != "" {
		data.ButtonURL = d.ordersURL
		data.ButtonTxt = "Ver mis pedidos"
	}
	d.send(ctx, "order_paid", order, data)
}

// NotifyTransferInstructions sends the bank details the customer must transfer to.
func (d *NotificationDispatcher) NotifyTransferInstructions(ctx context.Context, order *db_models.Order) {
	rows := d.summaryRows(order)
	rows = append(rows,
		EmailRow{Label: "Titular", Value: d.bank.Holder},
		EmailRow{Label: "RUT", Value: d.bank.RUT},
		EmailRow{Label: "Banco", Value: d.bank.Bank},
		EmailRow{Label: "Tipo de cuenta", Value: d.bank.AccountType},
		EmailRow{Label: "Número de cuenta", Value: d.bank.AccountNumber},
	)
	outro := "Indica el número de pedido en el comentario de la transferencia."
	if d.bank.ContactEmail != "" {
		outro += " Envía el comprobante a " + d.bank.ContactEmail + "."
	}
	d.send(ctx, "transfer_instructions", order, EmailData{
		Title: "Instrucciones de transferencia - " + order.CommerceOrderID,
		Intro: "Recibimos tu pedido. Para completarlo, realiza una transferencia con los siguientes datos:",
		Rows:  rows,
		Outro: outro,
	})
}

func (d *NotificationDispatcher) send(ctx context.Context, kind string, order *db_models.Order, data EmailData) {
	log := d.log.With("kind", kind, "commerce_order_id", order.CommerceOrderID)

	to := strings.TrimSpace(order.PayerEmail)
	if to == "" {
		d.metrics.NotificationsSent.WithLabelValues(kind, "no_recipient").Inc()
		log.Info("no payer email, notification skipped")
		return
	}

	if err := d.mail.SendTemplate(ctx, to, data); err != nil {
		result := "failed"
		if errors.Is(err, ErrMailSkipped) {
			result = "skipped"
		}
		d.metrics.NotificationsSent.WithLabelValues(kind, result).Inc()
		log.Error("notification not delivered", "provider", d.mail.Provider(), "error", err.Error())
		return
	}
	d.metrics.NotificationsSent.WithLabelValues(kind, "sent").Inc()
	log.Info("notification sent", "provider", d.mail.Provider())
}

func (d *NotificationDispatcher) summaryRows(order *db_models.Order) []EmailRow {
	rows := []EmailRow{{Label: "Pedido", Value: order.CommerceOrderID}}
	for _, it := range order.Items() {
		name := it.Name
		if name == "" {
			name = it.ProductRef
		}
		rows = append(rows, EmailRow{
			Label: fmt.Sprintf("%s x%d", name, it.Quantity),
			Value: FormatCLP(it.UnitPrice * it.Quantity),
		})
	}
	rows = append(rows, EmailRow{Label: "Subtotal", Value: FormatCLP(order.Subtotal)})
	if order.ShippingFee > 0 {
		rows = append(rows, EmailRow{Label: "Envío", Value: FormatCLP(order.ShippingFee)})
	}
	if order.Discount > 0 {
		rows = append(rows, EmailRow{Label: "Descuento", Value: "-" + FormatCLP(order.Discount)})
	}
	rows = append(rows, EmailRow{Label: "Total", Value: FormatCLP(order.Total)})

	if m := order.NormalizedMeta(); m.Address != "" {
		addr := m.Address
		if m.Comuna != "" {
			addr += ", " + m.Comuna
		}
		rows = append(rows, EmailRow{Label: "Dirección", Value: addr})
	}
	return rows
}

// FormatCLP renders whole pesos with dot thousands separators, e.g. $12.990.
func FormatCLP(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}
