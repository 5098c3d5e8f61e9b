package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/observability"
	"go.uber.org/zap"
)

// GatewayOrderRequest is the payment intent sent to the gateway.
type GatewayOrderRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway's view of a created intent. Raw keeps the full response body.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Raw      map[string]any
}

// GatewayError is a non-2xx answer from the gateway.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, e.Body)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, traceID string, req GatewayOrderRequest) (GatewayOrder, error)
}

// RazorpayConfig holds the credentials and limits of the Razorpay orders API client.
type RazorpayConfig struct {
	Logger     *zap.Logger
	BaseURL    string // e.g: https://api.razorpay.com
	KeyID      string
	KeySecret  string
	Timeout    time.Duration // per call, retries included
	MaxRetries uint64
	HTTPClient *http.Client // optional, defaults to utils.NewHTTPClient
}

type RazorpayClient struct {
	logger     *zap.Logger
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	maxRetries uint64
	httpClient *http.Client
	// newBackOff is replaced in tests to avoid real sleeps
	newBackOff func() backoff.BackOff
}

func NewRazorpayClient(cfg RazorpayConfig) *RazorpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(utils.WithClientTimeout(timeout))
	}
	return &RazorpayClient{
		logger:     cfg.Logger,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: httpClient,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// CreateOrder posts an order to /v1/orders. The endpoint takes no idempotency key, so only
// failures where the gateway cannot have created an order are retried: dial errors, 429 and 503.
func (r *RazorpayClient) CreateOrder(ctx context.Context, traceID string, req GatewayOrderRequest) (GatewayOrder, error) {
	start := time.Now()
	defer func() { observability.GatewayLatency.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return GatewayOrder{}, err
	}

	var order GatewayOrder
	operation := func() error {
		order, err = r.postOrder(ctx, traceID, body)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("razorpay order creation failed, retrying",
			zap.String(pkg.TraceId, traceID),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	if err = backoff.RetryNotify(operation, b, notify); err != nil {
		return GatewayOrder{}, err
	}
	return order, nil
}

func (r *RazorpayClient) postOrder(ctx context.Context, traceID string, body []byte) (GatewayOrder, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, err
	}
	httpReq.SetBasicAuth(r.keyID, r.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(pkg.HeaderTraceId, traceID)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return GatewayOrder{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GatewayOrder{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GatewayOrder{}, &GatewayError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var raw map[string]any
	if err = json.Unmarshal(payload, &raw); err != nil {
		return GatewayOrder{}, fmt.Errorf("decode gateway response: %w", err)
	}
	var typed struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err = json.Unmarshal(payload, &typed); err != nil {
		return GatewayOrder{}, fmt.Errorf("decode gateway response: %w", err)
	}
	return GatewayOrder{ID: typed.ID, Amount: typed.Amount, Currency: typed.Currency, Raw: raw}, nil
}

// retryable reports whether err proves the request was not processed by the gateway.
func retryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode == http.StatusTooManyRequests || gwErr.StatusCode == http.StatusServiceUnavailable
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
