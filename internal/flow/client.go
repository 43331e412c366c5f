package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable wraps transport level failures (timeouts, refused connections).
var ErrUnavailable = errors.New("flow: gateway unavailable")

// APIError is returned when Flow answers with a non-2xx status or an unusable body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flow: status %d: %s", e.StatusCode, e.Body)
}

// Status codes reported by payment/getStatus.
type PaymentState int

const (
	StatePending  PaymentState = 1
	StatePaid     PaymentState = 2
	StateRejected PaymentState = 3
	StateCanceled PaymentState = 4
)

func (s PaymentState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StatePaid:
		return "PAID"
	case StateRejected:
		return "REJECTED"
	case StateCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	BaseURL    string
	APIKey     string
	Secret     string
	CommerceID string
	Timeout    time.Duration
}

type CreatePaymentRequest struct {
	CommerceOrder   string
	Subject         string
	Currency        string
	Amount          int64
	Email           string
	URLConfirmation string
	URLReturn       string
}

type CreatePaymentResponse struct {
	Token     string
	URL       string
	FlowOrder string
}

// RedirectURL is where the payer's browser must be sent to complete the payment.
func (r *CreatePaymentResponse) RedirectURL() string {
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + "token=" + url.QueryEscape(r.Token)
}

type PaymentStatus struct {
	FlowOrder     string
	CommerceOrder string
	Status        PaymentState
	Amount        *int64
	Currency      string
	Payer         string
	RequestDate   string
}

// Gateway is the subset of the Flow API the payment flow depends on.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	GetStatus(ctx context.Context, token string) (*PaymentStatus, error)
}

type Client struct {
	http *http.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		http: &http.Client{Timeout: timeout},
		cfg:  cfg,
	}
}

func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	params := map[string]string{
		"apiKey":          c.cfg.APIKey,
		"commerceOrder":   req.CommerceOrder,
		"subject":         req.Subject,
		"amount":          strconv.FormatInt(req.Amount, 10),
		"email":           req.Email,
		"urlConfirmation": req.URLConfirmation,
		"urlReturn":       req.URLReturn,
	}
	if req.Currency != "" {
		params["currency"] = req.Currency
	}
	if c.cfg.CommerceID != "" {
		params["commerceId"] = c.cfg.CommerceID
	}
	params[SignatureParam] = Sign(params, c.cfg.Secret)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment/create", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var out struct {
		Token     string     `json:"token"`
		URL       string     `json:"url"`
		FlowOrder flexString `json:"flowOrder"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Body: string(body)}
	}
	if out.Token == "" || out.URL == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Body: string(body)}
	}
	return &CreatePaymentResponse{Token: out.Token, URL: out.URL, FlowOrder: string(out.FlowOrder)}, nil
}

func (c *Client) GetStatus(ctx context.Context, token string) (*PaymentStatus, error) {
	params := map[string]string{
		"apiKey": c.cfg.APIKey,
		"token":  token,
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set(SignatureParam, Sign(params, c.cfg.Secret))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/payment/getStatus?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var out struct {
		FlowOrder     flexString `json:"flowOrder"`
		CommerceOrder string     `json:"commerceOrder"`
		RequestDate   string     `json:"requestDate"`
		Status        flexInt    `json:"status"`
		Amount        *flexInt   `json:"amount"`
		Currency      string     `json:"currency"`
		Payer         string     `json:"payer"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Body: string(body)}
	}
	status := &PaymentStatus{
		FlowOrder:     string(out.FlowOrder),
		CommerceOrder: out.CommerceOrder,
		Status:        PaymentState(out.Status),
		Currency:      out.Currency,
		Payer:         out.Payer,
		RequestDate:   out.RequestDate,
	}
	if out.Amount != nil {
		amount := int64(*out.Amount)
		status.Amount = &amount
	}
	return status, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts numbers and numeric strings, rounding fractions to the nearest integer.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	raw := strings.Trim(string(b), `"`)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("flow: not a number: %s", raw)
	}
	*f = flexInt(math.Round(v))
	return nil
}
