package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"storefront/internal/events"
	"storefront/internal/flow"
	"storefront/internal/metrics"
	"storefront/internal/models/db_models"
	"storefront/internal/repositories"
)

func testMetrics() *metrics.PaymentMetrics {
	return metrics.NewPaymentMetrics(prometheus.NewRegistry())
}

type fakeGateway struct {
	CreateFunc func(ctx context.Context, req flow.CreatePaymentRequest) (*flow.CreatePaymentResponse, error)
	StatusFunc func(ctx context.Context, token string) (*flow.PaymentStatus, error)

	createCalls int32
	statusCalls int32
	lastCreate  flow.CreatePaymentRequest
	mu          sync.Mutex
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req flow.CreatePaymentRequest) (*flow.CreatePaymentResponse, error) {
	atomic.AddInt32(&g.createCalls, 1)
	g.mu.Lock()
	g.lastCreate = req
	g.mu.Unlock()
	if g.CreateFunc == nil {
		return &flow.CreatePaymentResponse{Token: "tok-" + req.CommerceOrder, URL: "https://sandbox.flow.cl/app/web/pay.php", FlowOrder: "9001"}, nil
	}
	return g.CreateFunc(ctx, req)
}

func (g *fakeGateway) GetStatus(ctx context.Context, token string) (*flow.PaymentStatus, error) {
	atomic.AddInt32(&g.statusCalls, 1)
	if g.StatusFunc == nil {
		return nil, errors.New("no status configured")
	}
	return g.StatusFunc(ctx, token)
}

func paidStatus(commerceOrder string, amount int64) func(context.Context, string) (*flow.PaymentStatus, error) {
	return func(context.Context, string) (*flow.PaymentStatus, error) {
		a := amount
		return &flow.PaymentStatus{
			FlowOrder:     "9001",
			CommerceOrder: commerceOrder,
			Status:        flow.StatePaid,
			Amount:        &a,
			Payer:         "buyer@example.com",
		}, nil
	}
}

// fakeOrderRepo mirrors the conditional update semantics of the gorm repository.
type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*db_models.Order
	insertErr error
	updates   int32
	seq       int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]*db_models.Order{}}
}

func (r *fakeOrderRepo) Insert(_ context.Context, o *db_models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	r.seq++
	o.CreatedAt = r.seq
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) find(match func(*db_models.Order) bool) *db_models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			cp := *o
			return &cp
		}
	}
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*db_models.Order, error) {
	return r.find(func(o *db_models.Order) bool { return o.ID == id }), nil
}

func (r *fakeOrderRepo) FindByCommerceOrderID(_ context.Context, id string) (*db_models.Order, error) {
	return r.find(func(o *db_models.Order) bool { return o.CommerceOrderID == id }), nil
}

func (r *fakeOrderRepo) FindByGatewayToken(_ context.Context, token string) (*db_models.Order, error) {
	return r.find(func(o *db_models.Order) bool { return o.SessionToken() == token }), nil
}

func (r *fakeOrderRepo) FindByEmail(_ context.Context, email string) ([]db_models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db_models.Order
	for _, o := range r.orders {
		if strings.EqualFold(o.PayerEmail, strings.TrimSpace(email)) {
			out = append(out, *o)
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *fakeOrderRepo) List(_ context.Context, state db_models.OrderState, page, pageSize int) ([]db_models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db_models.Order
	for _, o := range r.orders {
		if state == "" || o.State == state {
			out = append(out, *o)
		}
	}
	newestFirst(out)
	total := int64(len(out))
	from := (page - 1) * pageSize
	if from >= len(out) {
		return nil, total, nil
	}
	to := from + pageSize
	if to > len(out) {
		to = len(out)
	}
	return out[from:to], total, nil
}

func newestFirst(orders []db_models.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt > orders[j].CreatedAt })
}

func (r *fakeOrderRepo) UpdateIfState(_ context.Context, id uuid.UUID, expected db_models.OrderState, patch repositories.OrderPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.State != expected || !patch.AllowedFrom(expected) {
		return false, nil
	}
	atomic.AddInt32(&r.updates, 1)
	o.State = patch.State
	if patch.GatewayOrderID != "" {
		o.GatewayOrderID = patch.GatewayOrderID
	}
	if patch.PaidAt != nil {
		v := *patch.PaidAt
		o.PaidAt = &v
	}
	if len(patch.PaymentSnapshot) > 0 {
		o.PaymentSnapshot = patch.PaymentSnapshot
	}
	if len(patch.Discrepancy) > 0 {
		o.Discrepancy = patch.Discrepancy
	}
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type sentMail struct {
	To, Subject, HTML, Text string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: msg.To, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text})
	return nil
}

func (m *fakeMailer) Name() string { return "fake" }

func (m *fakeMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}
