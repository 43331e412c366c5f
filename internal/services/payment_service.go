package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/mail"
	"net/url"
	"strings"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"storefront/internal/events"
	"storefront/internal/flow"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models/db_models"
	"storefront/internal/models/request_models"
	"storefront/internal/models/response_models"
	"storefront/internal/repositories"
	mem "storefront/pkg/memcache"
	"storefront/pkg/utils"
)

const (
	WebhookPath = "/flow/confirm"
	ReturnPath  = "/flow/return"
)

type PaymentConfig struct {
	PublicBaseURL         string // this backend, e.g. https://api.example.com
	ConfirmationURL       string
	ReturnURL             string
	Secret                string
	Subject               string
	Currency              string
	FallbackEmail         string
	MinAmount             int64
	AmountTolerance       int64
	LedgerTTL             time.Duration
	AllowUnsignedWebhooks bool
}

type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomePending   Outcome = "PENDING"
	OutcomeRejected  Outcome = "REJECTED"
)

type ReconcileResult struct {
	Outcome         Outcome
	Reason          error
	CommerceOrderID string
}

// HTTPStatus is the status code returned to the gateway.
func (r ReconcileResult) HTTPStatus() int {
	if r.Outcome != OutcomeRejected {
		return 200
	}
	// acknowledged so the gateway stops retrying
	if errors.Is(r.Reason, utils.ErrOrderNotFound) {
		return 200
	}
	return utils.StatusFor(r.Reason)
}

type PaymentService interface {
	CreateSession(ctx context.Context, req request_models.CheckoutRequest) (*response_models.CreateSessionResponse, error)
	Reconcile(ctx context.Context, token, signature string) ReconcileResult
	ReturnStatus(ctx context.Context, token string) (*response_models.PaymentReturnView, error)
}

type paymentService struct {
	cfg        PaymentConfig
	confirmURL string
	returnURL  string

	gateway   flow.Gateway
	repo      repositories.OrderRepository
	ledger    mem.TokenLedger
	quotes    QuoteServiceInterface
	publisher events.Publisher
	metrics   *metrics.PaymentMetrics

	newOrderID func() string
	now        func() time.Time
}

func NewPaymentService(
	cfg PaymentConfig,
	gateway flow.Gateway,
	repo repositories.OrderRepository,
	ledger mem.TokenLedger,
	quotes QuoteServiceInterface,
	publisher events.Publisher,
	m *metrics.PaymentMetrics,
) (PaymentService, error) {
	confirmURL, returnURL, err := NormalizeCallbackURLs(cfg.PublicBaseURL, cfg.ConfirmationURL, cfg.ReturnURL)
	if err != nil {
		return nil, err
	}
	if cfg.LedgerTTL <= 0 {
		cfg.LedgerTTL = 10 * time.Minute
	}

	newOrderID, err := commerceOrderIDs()
	if err != nil {
		return nil, err
	}

	log := logging.New("payment")
	if cfg.AllowUnsignedWebhooks {
		log.Warn("UNSIGNED WEBHOOKS ACCEPTED: gateway confirmations without a signature will be processed. Disable flow.allow_unsigned_webhooks in production.")
	}
	log.Info("payment callbacks configured", "confirmation_url", confirmURL, "return_url", returnURL)

	return &paymentService{
		cfg:        cfg,
		confirmURL: confirmURL,
		returnURL:  returnURL,
		gateway:    gateway,
		repo:       repo,
		ledger:     ledger,
		quotes:     quotes,
		publisher:  publisher,
		metrics:    m,
		newOrderID: newOrderID,
		now:        time.Now,
	}, nil
}

// NormalizeCallbackURLs forces the confirmation URL onto the webhook route and keeps
// the return URL off it. Empty values default to routes under base.
func NormalizeCallbackURLs(base, confirmation, ret string) (string, string, error) {
	base = strings.TrimRight(base, "/")
	if confirmation == "" {
		confirmation = base + WebhookPath
	}
	if ret == "" {
		ret = base + ReturnPath
	}

	cu, err := url.Parse(confirmation)
	if err != nil || cu.Host == "" {
		return "", "", fmt.Errorf("invalid confirmation url %q", confirmation)
	}
	if strings.TrimRight(cu.Path, "/") != WebhookPath {
		cu.Path = WebhookPath
		cu.RawQuery = ""
	}

	ru, err := url.Parse(ret)
	if err != nil || ru.Host == "" {
		return "", "", fmt.Errorf("invalid return url %q", ret)
	}
	if strings.TrimRight(ru.Path, "/") == WebhookPath {
		ru.Path = ReturnPath
	}

	if cu.String() == ru.String() {
		return "", "", errors.New("confirmation and return urls must differ")
	}
	return cu.String(), ru.String(), nil
}

func (p *paymentService) CreateSession(ctx context.Context, req request_models.CheckoutRequest) (*response_models.CreateSessionResponse, error) {
	log := logging.FromCtx(ctx).With("op", "create_session")

	meta := db_models.NormalizeOrderMeta(req.Meta)
	quote, err := p.quotes.Quote(ctx, QuoteInput{Items: req.Cart(), Meta: meta, MinimumAmount: p.cfg.MinAmount})
	if err != nil {
		p.metrics.SessionsCreated.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if req.ShippingCost != nil && int64(math.Round(*req.ShippingCost)) != quote.ShippingFee {
		log.Warn("client shipping differs from quote, using server figure",
			"client_shipping", *req.ShippingCost, "server_shipping", quote.ShippingFee)
	}

	email := strings.TrimSpace(req.PayerEmail())
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, utils.ErrInvalidEmail
		}
	}
	gatewayEmail := email
	if gatewayEmail == "" {
		gatewayEmail = p.cfg.FallbackEmail
	}

	commerceOrderID := p.newOrderID()
	log = log.With("commerce_order_id", commerceOrderID)

	start := time.Now()
	session, err := p.gateway.CreatePayment(ctx, flow.CreatePaymentRequest{
		CommerceOrder:   commerceOrderID,
		Subject:         p.cfg.Subject,
		Currency:        p.cfg.Currency,
		Amount:          quote.Total,
		Email:           gatewayEmail,
		URLConfirmation: p.confirmURL,
		URLReturn:       p.returnURL,
	})
	p.metrics.GatewayLatency.WithLabelValues("create").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		p.metrics.SessionsCreated.WithLabelValues("gateway_error").Inc()
		log.Error("gateway rejected session", "error", err.Error())
		return nil, toSessionGatewayError(err)
	}

	itemsJSON, err := json.Marshal(quote.Items)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(req.Meta)
	if err != nil {
		return nil, err
	}

	token := session.Token
	order := &db_models.Order{
		CommerceOrderID:     commerceOrderID,
		GatewaySessionToken: &token,
		GatewayOrderID:      session.FlowOrder,
		PaymentMethod:       db_models.PaymentMethodFlow,
		State:               db_models.OrderStatePending,
		LineItems:           itemsJSON,
		Subtotal:            quote.Subtotal,
		ShippingFee:         quote.ShippingFee,
		Discount:            quote.Discount,
		Total:               quote.Total,
		Currency:            p.cfg.Currency,
		PayerEmail:          email,
		PayerName:           meta.Name,
		Meta:                metaJSON,
	}
	if err := p.repo.Insert(ctx, order); err != nil {
		p.metrics.SessionsCreated.WithLabelValues("db_error").Inc()
		log.Error("persist pending order failed", "error", err.Error())
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	p.metrics.SessionsCreated.WithLabelValues("created").Inc()
	p.metrics.SessionAmount.Add(float64(quote.Total))
	log.Info("payment session created", "total", quote.Total, "shipping", quote.ShippingFee)

	return &response_models.CreateSessionResponse{
		RedirectURL:         session.RedirectURL(),
		GatewaySessionToken: token,
		CommerceOrderID:     commerceOrderID,
		Total:               quote.Total,
	}, nil
}

// commerceOrderIDs yields ids like ORD-1718000000000-K3F9QZ.
func commerceOrderIDs() (func() string, error) {
	suffix, err := nanoid.CustomASCII("0123456789ABCDEFGHJKLMNPQRSTUVWXYZ", 6)
	if err != nil {
		return nil, err
	}
	return func() string {
		return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix())
	}, nil
}

func toSessionGatewayError(err error) error {
	var apiErr *flow.APIError
	if errors.As(err, &apiErr) {
		return &utils.GatewayError{StatusCode: apiErr.StatusCode, Detail: apiErr.Body}
	}
	return &utils.GatewayError{Detail: err.Error()}
}

func toStatusGatewayError(err error) error {
	return fmt.Errorf("%w: %v", utils.ErrGatewayUnavailable, err)
}

func (p *paymentService) Reconcile(ctx context.Context, token, signature string) ReconcileResult {
	log := logging.FromCtx(ctx).With("op", "reconcile")
	res := p.reconcile(ctx, log, token, signature)

	reason := ""
	if res.Reason != nil {
		reason = utils.ErrorCode(res.Reason)
	}
	p.metrics.WebhookOutcomes.WithLabelValues(string(res.Outcome), reason).Inc()
	return res
}

func (p *paymentService) reconcile(ctx context.Context, log *slog.Logger, token, signature string) ReconcileResult {
	reject := func(err error) ReconcileResult {
		return ReconcileResult{Outcome: OutcomeRejected, Reason: err}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return reject(utils.ErrMissingToken)
	}
	log = log.With("token", maskToken(token))

	// signature
	if signature == "" && p.cfg.AllowUnsignedWebhooks {
		log.Warn("processing unsigned confirmation")
	} else if !flow.Verify(map[string]string{"token": token}, signature, p.cfg.Secret) {
		p.metrics.SignatureFailures.Inc()
		log.Warn("confirmation signature mismatch, possible forgery", "security", true)
		return reject(utils.ErrInvalidSignature)
	}

	// dedup, before any further I/O
	fresh, err := p.ledger.Put(ctx, token, p.cfg.LedgerTTL)
	if err != nil {
		log.Error("ledger unavailable", "error", err.Error())
		return reject(fmt.Errorf("%w: ledger: %v", utils.ErrDatabaseError, err))
	}
	if !fresh {
		p.metrics.DuplicateTokens.Inc()
		log.Warn("duplicate confirmation", "security", true)
		return reject(utils.ErrDuplicateToken)
	}

	// Entries for deliveries that committed nothing are released so a later delivery can retry.
	keep := false
	defer func() {
		if keep {
			return
		}
		if err := p.ledger.Delete(context.WithoutCancel(ctx), token); err != nil {
			log.Error("release ledger entry failed", "error", err.Error())
		}
	}()

	if existing, err := p.repo.FindByGatewayToken(ctx, token); err != nil {
		log.Error("order lookup by token failed", "error", err.Error())
		return reject(fmt.Errorf("%w: %v", utils.ErrDatabaseError, err))
	} else if existing != nil && existing.State.IsTerminal() {
		keep = true
		p.metrics.DuplicateTokens.Inc()
		log.Warn("confirmation for settled order", "commerce_order_id", existing.CommerceOrderID, "state", existing.State)
		return ReconcileResult{Outcome: OutcomeRejected, Reason: utils.ErrDuplicateToken, CommerceOrderID: existing.CommerceOrderID}
	}

	// authoritative status
	start := time.Now()
	status, err := p.gateway.GetStatus(ctx, token)
	p.metrics.GatewayLatency.WithLabelValues("status").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.Error("status fetch failed", "error", err.Error())
		return reject(toStatusGatewayError(err))
	}
	if status.FlowOrder == "" || status.CommerceOrder == "" || status.Status == 0 || status.Amount == nil || *status.Amount <= 0 {
		log.Error("incomplete gateway status", "flow_order", status.FlowOrder, "commerce_order_id", status.CommerceOrder, "status", int(status.Status))
		return reject(utils.ErrIncompleteGatewayResponse)
	}
	log = log.With("commerce_order_id", status.CommerceOrder, "flow_order", status.FlowOrder)

	if status.Status != flow.StatePaid {
		log.Info("payment not settled yet", "gateway_status", status.Status.String())
		return ReconcileResult{Outcome: OutcomePending, CommerceOrderID: status.CommerceOrder}
	}

	order, err := p.repo.FindByCommerceOrderID(ctx, status.CommerceOrder)
	if err == nil && order == nil {
		order, err = p.repo.FindByGatewayToken(ctx, token)
	}
	if err != nil {
		log.Error("order lookup failed", "error", err.Error())
		return reject(fmt.Errorf("%w: %v", utils.ErrDatabaseError, err))
	}
	if order == nil {
		keep = true
		log.Error("paid confirmation for unknown order", "anomaly", true)
		return ReconcileResult{Outcome: OutcomeRejected, Reason: utils.ErrOrderNotFound, CommerceOrderID: status.CommerceOrder}
	}
	if order.State != db_models.OrderStatePending {
		keep = true
		p.metrics.DuplicateTokens.Inc()
		log.Warn("order no longer pending", "state", order.State)
		return ReconcileResult{Outcome: OutcomeRejected, Reason: utils.ErrDuplicateToken, CommerceOrderID: order.CommerceOrderID}
	}

	now := p.now()
	paid := *status.Amount
	diff := paid - order.Total
	if absInt64(diff) > p.cfg.AmountTolerance {
		discrepancy, _ := json.Marshal(db_models.DiscrepancyData{
			Type:       "amount_mismatch",
			Expected:   order.Total,
			Paid:       paid,
			Difference: diff,
			Tolerance:  p.cfg.AmountTolerance,
			DetectedAt: now.Unix(),
		})
		snapshot := p.snapshot(status, paid, now)
		ok, err := p.repo.UpdateIfState(ctx, order.ID, db_models.OrderStatePending, repositories.OrderPatch{
			State:           db_models.OrderStateAmountMismatch,
			GatewayOrderID:  status.FlowOrder,
			PaymentSnapshot: snapshot,
			Discrepancy:     discrepancy,
		})
		if err != nil {
			log.Error("persist amount mismatch failed", "error", err.Error())
			return reject(fmt.Errorf("%w: %v", utils.ErrDatabaseError, err))
		}
		keep = true
		if !ok {
			return ReconcileResult{Outcome: OutcomeRejected, Reason: utils.ErrDuplicateToken, CommerceOrderID: order.CommerceOrderID}
		}
		p.metrics.AmountMismatches.Inc()
		log.Error("amount mismatch, order parked for review", "expected", order.Total, "paid", paid, "difference", diff)
		return ReconcileResult{Outcome: OutcomeRejected, Reason: utils.ErrAmountMismatch, CommerceOrderID: order.CommerceOrderID}
	}

	paidAt := now.Unix()
	ok, err := p.repo.UpdateIfState(ctx, order.ID, db_models.OrderStatePending, repositories.OrderPatch{
		State:           db_models.OrderStatePaid,
		GatewayOrderID:  status.FlowOrder,
		PaidAt:          &paidAt,
		PaymentSnapshot: p.snapshot(status, paid, now),
	})
	if err != nil {
		log.Error("commit paid state failed", "error", err.Error())
		return reject(fmt.Errorf("%w: %v", utils.ErrDatabaseError, err))
	}
	keep = true
	if !ok {
		p.metrics.DuplicateTokens.Inc()
		log.Warn("lost commit race, order already settled")
		return ReconcileResult{Outcome: OutcomeRejected, Reason: utils.ErrDuplicateToken, CommerceOrderID: order.CommerceOrderID}
	}

	p.metrics.OrdersPaidAmount.Add(float64(order.Total))
	log.Info("order paid", "total", order.Total, "paid", paid)

	p.publisher.Publish(ctx, events.NewEvent(events.TypeOrderPaid, order.ID, order.CommerceOrderID, paid, "webhook"))
	return ReconcileResult{Outcome: OutcomeConfirmed, CommerceOrderID: order.CommerceOrderID}
}

func (p *paymentService) snapshot(status *flow.PaymentStatus, paid int64, now time.Time) []byte {
	b, _ := json.Marshal(db_models.PaymentSnapshotData{
		Source:    "flow",
		Status:    status.Status.String(),
		Amount:    paid,
		Payer:     status.Payer,
		FlowOrder: status.FlowOrder,
		SeenAt:    now.Unix(),
	})
	return b
}

// ReturnStatus reads the gateway status for the browser return page. It never writes.
func (p *paymentService) ReturnStatus(ctx context.Context, token string) (*response_models.PaymentReturnView, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, utils.ErrMissingToken
	}

	status, err := p.gateway.GetStatus(ctx, token)
	if err != nil {
		return nil, toStatusGatewayError(err)
	}

	view := &response_models.PaymentReturnView{
		CommerceOrderID: status.CommerceOrder,
		Status:          status.Status.String(),
	}
	if status.Amount != nil {
		view.Amount = *status.Amount
	}

	if order, err := p.repo.FindByGatewayToken(ctx, token); err == nil && order != nil {
		view.OrderState = string(order.State)
		if view.CommerceOrderID == "" {
			view.CommerceOrderID = order.CommerceOrderID
		}
	}
	return view, nil
}

func maskToken(t string) string {
	if len(t) <= 8 {
		return "****"
	}
	return t[:4] + "..." + t[len(t)-4:]
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
