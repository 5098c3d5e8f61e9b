package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	middleware "github.com/nimeshabuddhika/storefront-orders/pkg/middlewares"
	"github.com/nimeshabuddhika/storefront-orders/pkg/models"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/handlers"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOrders struct {
	placeErr   error
	cancelErr  error
	history    []views.OrderHistoryEntry
	historyErr error
	placed     []views.PlaceOrderRequest
	historyFor []int64
}

func (s *stubOrders) PlaceOrder(_ context.Context, _ string, req views.PlaceOrderRequest) (models.Order, error) {
	s.placed = append(s.placed, req)
	if s.placeErr != nil {
		return models.Order{}, s.placeErr
	}
	return models.Order{OrderID: req.OrderID, UserID: req.UserID, Status: pkg.OrderStatusPlaced}, nil
}

func (s *stubOrders) CancelOrder(_ context.Context, _ string, orderID string) (models.Order, error) {
	if s.cancelErr != nil {
		return models.Order{}, s.cancelErr
	}
	return models.Order{OrderID: orderID, UserID: 7, Status: pkg.OrderStatusCancelled}, nil
}

func (s *stubOrders) GetOrderHistory(_ context.Context, _ string, userID int64) ([]views.OrderHistoryEntry, error) {
	s.historyFor = append(s.historyFor, userID)
	return s.history, s.historyErr
}

type stubNotifier struct {
	placed     []string
	cancelled  []models.Order
	placedErr  error
	invoiceErr error
	invoices   [][]byte
}

func (s *stubNotifier) OrderPlaced(_ context.Context, _ string, order models.Order) error {
	s.placed = append(s.placed, order.OrderID)
	return s.placedErr
}

func (s *stubNotifier) OrderCancelled(_ context.Context, _ string, order models.Order) error {
	s.cancelled = append(s.cancelled, order)
	return nil
}

func (s *stubNotifier) SendInvoice(_ context.Context, _ string, _, _ string, document []byte) error {
	s.invoices = append(s.invoices, document)
	return s.invoiceErr
}

type stubPayments struct {
	intentErr  error
	verifyErr  error
	webhookErr error
	webhook    struct {
		payload   string
		signature string
		eventID   string
	}
}

func (s *stubPayments) CreateIntent(_ context.Context, _ string, req views.CreateIntentRequest) (views.CreateIntentResponse, error) {
	if s.intentErr != nil {
		return views.CreateIntentResponse{}, s.intentErr
	}
	return views.CreateIntentResponse{Success: true, ID: "order_X", Amount: req.Amount, Currency: "INR", Key: "rzp_key"}, nil
}

func (s *stubPayments) VerifyClientConfirmation(context.Context, string, views.VerifyPaymentRequest) error {
	return s.verifyErr
}

func (s *stubPayments) HandleWebhook(_ context.Context, _ string, payload []byte, signature, eventID string) error {
	s.webhook.payload, s.webhook.signature, s.webhook.eventID = string(payload), signature, eventID
	return s.webhookErr
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) bool { return true }

const storefrontOrigin = "https://indiangoods.co.in"

type routerFixture struct {
	engine   *gin.Engine
	orders   *stubOrders
	notifier *stubNotifier
	payments *stubPayments
}

func newFixture(t *testing.T, limiter middleware.Limiter, maxBody int64) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &routerFixture{orders: &stubOrders{}, notifier: &stubNotifier{}, payments: &stubPayments{}}
	logger := zap.NewNop()
	f.engine = NewRouter(logger, RouterConfig{
		AllowedOrigins: []string{storefrontOrigin, "http://localhost:3000"},
		Limiter:        limiter,
		MaxBodyBytes:   maxBody,
		Orders:         handlers.NewOrderHandler(logger, f.orders, f.notifier),
		Payments:       handlers.NewPaymentHandler(logger, f.payments),
	})
	return f
}

func (f *routerFixture) do(method, path string, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const placeOrderBody = `{"order_id":"ord-1","id":7,"total_amount":2000,"shipping_address":"12 Lake Rd",` +
	`"payment_method":"razorpay","items":[{"product_id":3,"quantity":2,"price":1000}]}`

func TestRouter_PlaceOrder(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		w := f.do(http.MethodPost, "/api/order", placeOrderBody, pkg.HeaderTraceId, "trace-123")

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decode[views.PlaceOrderResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "ord-1", resp.OrderID)
		assert.Equal(t, "trace-123", w.Header().Get(pkg.HeaderTraceId))
		assert.Equal(t, []string{"ord-1"}, f.notifier.placed)
		require.Len(t, f.orders.placed, 1)
		assert.Equal(t, int64(7), f.orders.placed[0].UserID)
	})

	t.Run("trace id is minted when absent", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		w := f.do(http.MethodPost, "/api/order", placeOrderBody)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotEmpty(t, w.Header().Get(pkg.HeaderTraceId))
	})

	t.Run("notification failure does not fail the request", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.notifier.placedErr = errors.New("broker down")
		w := f.do(http.MethodPost, "/api/order", placeOrderBody)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.orders.placeErr = pkg.NewCodedError(pkg.ErrDuplicateOrderCode, nil)
		w := f.do(http.MethodPost, "/api/order", placeOrderBody)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[pkg.ErrorResponse](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, pkg.ErrDuplicateOrderCode.Code, resp.Code)
		assert.Equal(t, "order_id already exists", resp.Error)
		assert.Empty(t, f.notifier.placed)
	})

	t.Run("persistence failure hides the cause", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.orders.placeErr = pkg.NewAppError(pkg.ErrSQLUnknownCode, "persistence failure", errors.New("conn reset by peer"))
		w := f.do(http.MethodPost, "/api/order", placeOrderBody)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "sql error", decode[pkg.ErrorResponse](t, w).Error)
	})

	t.Run("binding failures are 400", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		for _, body := range []string{
			`{`,
			`{"order_id":"ord-1","id":7,"total_amount":2000,"shipping_address":"x","payment_method":"cod","items":[]}`,
			`{"order_id":"ord-1","id":0,"total_amount":2000,"shipping_address":"x","payment_method":"cod","items":[{"product_id":1,"quantity":1,"price":1}]}`,
		} {
			w := f.do(http.MethodPost, "/api/order", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		assert.Empty(t, f.orders.placed)
	})

	t.Run("oversized body is 413", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 64)
		w := f.do(http.MethodPost, "/api/order", placeOrderBody)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Empty(t, f.orders.placed)
	})
}

func TestRouter_OrderHistory(t *testing.T) {
	t.Run("empty history is an empty array", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.orders.history = []views.OrderHistoryEntry{}
		w := f.do(http.MethodGet, "/api/order/order-history/42", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		assert.Equal(t, []int64{42}, f.orders.historyFor)
	})

	t.Run("entries", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.orders.history = []views.OrderHistoryEntry{{
			OrderID:     "ord-9",
			OrderDate:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			TotalAmount: 500,
			OrderStatus: pkg.OrderStatusPlaced,
			Items:       []views.OrderItemHistory{{ID: 1, OrderID: "ord-9", ProductID: 2, Quantity: 1, Price: 500}},
		}}
		w := f.do(http.MethodGet, "/api/order/order-history/42", "")

		require.Equal(t, http.StatusOK, w.Code)
		history := decode[[]views.OrderHistoryEntry](t, w)
		require.Len(t, history, 1)
		assert.Equal(t, "ord-9", history[0].OrderID)
		assert.Equal(t, pkg.OrderStatusPlaced, history[0].OrderStatus)
	})

	t.Run("invalid user id", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		for _, id := range []string{"abc", "0", "-3"} {
			w := f.do(http.MethodGet, "/api/order/order-history/"+id, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, id)
		}
		assert.Empty(t, f.orders.historyFor)
	})
}

func TestRouter_CancelOrder(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "cancelled", status: http.StatusOK, message: "Order cancelled successfully"},
		{name: "not found", err: pkg.NewAppError(pkg.ErrRecordNotFoundCode, "Order not found", nil), status: http.StatusNotFound, message: "Order not found"},
		{name: "already cancelled", err: pkg.NewCodedError(pkg.ErrOrderAlreadyCancelledCode, nil), status: http.StatusBadRequest, message: "Order is already cancelled"},
		{name: "window expired", err: pkg.NewCodedError(pkg.ErrCancelWindowExpiredCode, nil), status: http.StatusBadRequest, message: "Order cannot be cancelled after 24 hours"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, allowAll{}, 1<<20)
			f.orders.cancelErr = tc.err
			w := f.do(http.MethodPut, "/api/order/cancel-order/ord-5", "")

			assert.Equal(t, tc.status, w.Code)
			if tc.err == nil {
				assert.Equal(t, tc.message, decode[views.StatusResponse](t, w).Message)
				require.Len(t, f.notifier.cancelled, 1)
				assert.Equal(t, "ord-5", f.notifier.cancelled[0].OrderID)
				assert.Equal(t, int64(7), f.notifier.cancelled[0].UserID)
				return
			}
			assert.Equal(t, tc.message, decode[pkg.ErrorResponse](t, w).Error)
			assert.Empty(t, f.notifier.cancelled)
		})
	}
}

func TestRouter_SendInvoice(t *testing.T) {
	pdf := []byte("%PDF-1.4")
	body := func(attachment string) string {
		b, _ := json.Marshal(map[string]string{"orderId": "ord-3", "email": "buyer@example.com", "pdf_attachment": attachment})
		return string(b)
	}

	t.Run("sent", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		w := f.do(http.MethodPost, "/api/order/send-invoice", body(base64.StdEncoding.EncodeToString(pdf)))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Invoice sent successfully", decode[views.StatusResponse](t, w).Message)
		require.Len(t, f.notifier.invoices, 1)
		assert.Equal(t, pdf, f.notifier.invoices[0])
	})

	t.Run("attachment must be base64", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		w := f.do(http.MethodPost, "/api/order/send-invoice", body("not base64!"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, f.notifier.invoices)
	})

	t.Run("delivery failure", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.notifier.invoiceErr = pkg.NewCodedError(pkg.ErrNotificationDeliveryFailCode, errors.New("smtp down"))
		w := f.do(http.MethodPost, "/api/order/send-invoice", body(base64.StdEncoding.EncodeToString(pdf)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRouter_Payments(t *testing.T) {
	t.Run("create intent", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		w := f.do(http.MethodPost, "/api/payments/create-razorpay-order", `{"amount":49900,"receipt":"r1"}`)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[views.CreateIntentResponse](t, w)
		assert.Equal(t, "order_X", resp.ID)
		assert.Equal(t, int64(49900), resp.Amount)
	})

	t.Run("create intent gateway failure", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.payments.intentErr = pkg.NewCodedError(pkg.ErrPaymentGatewayCode, errors.New("503"))
		w := f.do(http.MethodPost, "/api/payments/create-razorpay-order", `{"amount":49900,"receipt":"r1"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to create payment order", decode[pkg.ErrorResponse](t, w).Error)
	})

	t.Run("verify", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		w := f.do(http.MethodPost, "/api/payments/verify-razorpay-payment", `{"paymentId":"pay_1","orderId":"order_1","signature":"abc"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Payment verified successfully", decode[views.StatusResponse](t, w).Message)

		f.payments.verifyErr = pkg.NewCodedError(pkg.ErrSignatureMismatchCode, nil)
		w = f.do(http.MethodPost, "/api/payments/verify-razorpay-payment", `{"paymentId":"pay_1","orderId":"order_1","signature":"abc"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid payment signature", decode[pkg.ErrorResponse](t, w).Error)
	})

	t.Run("webhook forwards raw bytes and headers", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		raw := `{"event":"payment.captured",  "payload":{}}`
		w := f.do(http.MethodPost, "/api/payments/razorpay-webhook", raw,
			pkg.HeaderRazorpaySignature, "sig-1", pkg.HeaderRazorpayEventId, "evt-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
		assert.Equal(t, raw, f.payments.webhook.payload)
		assert.Equal(t, "sig-1", f.payments.webhook.signature)
		assert.Equal(t, "evt-1", f.payments.webhook.eventID)
	})

	t.Run("webhook with a bad signature is 403", func(t *testing.T) {
		f := newFixture(t, allowAll{}, 1<<20)
		f.payments.webhookErr = pkg.NewCodedError(pkg.ErrInvalidWebhookSignatureCode, nil)
		w := f.do(http.MethodPost, "/api/payments/razorpay-webhook", `{}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Invalid webhook signature", decode[pkg.ErrorResponse](t, w).Error)
	})
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := pkg.NewDistributedLimiter(nil, "ratelimit:test", 2, time.Minute, zap.NewNop())
	f := newFixture(t, limiter, 1<<20)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/order/order-history/1", "").Code)
	}
	w := f.do(http.MethodGet, "/api/order/order-history/1", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, pkg.ErrRateLimitedCode.Code, decode[pkg.ErrorResponse](t, w).Code)
	assert.Len(t, f.orders.historyFor, 2)

	// health and metrics sit outside the limited group
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	metrics := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.True(t, bytes.Contains(metrics.Body.Bytes(), []byte("storefront_orders_http_requests_total")))
}

func TestRouter_CORS(t *testing.T) {
	f := newFixture(t, allowAll{}, 1<<20)

	t.Run("preflight from a storefront origin", func(t *testing.T) {
		w := f.do(http.MethodOptions, "/api/order", "",
			"Origin", storefrontOrigin,
			"Access-Control-Request-Method", http.MethodPost,
			"Access-Control-Request-Headers", "Content-Type")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, storefrontOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Empty(t, f.orders.placed)
	})

	t.Run("simple request exposes the trace header", func(t *testing.T) {
		f.orders.history = []views.OrderHistoryEntry{}
		w := f.do(http.MethodGet, "/api/order/order-history/5", "", "Origin", "http://localhost:3000")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), pkg.HeaderTraceId)
	})

	t.Run("unknown origin is refused", func(t *testing.T) {
		calls := len(f.orders.historyFor)
		w := f.do(http.MethodGet, "/api/order/order-history/5", "", "Origin", "https://evil.example")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Len(t, f.orders.historyFor, calls)
	})

	t.Run("server to server calls carry no origin", func(t *testing.T) {
		w := f.do(http.MethodPost, "/api/payments/razorpay-webhook", `{"event":"payment.captured"}`,
			pkg.HeaderRazorpaySignature, "sig")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRouter_SecureHeaders(t *testing.T) {
	f := newFixture(t, allowAll{}, 1<<20)

	for _, path := range []string{"/health", "/api/order/order-history/abc", "/no-such-route"} {
		w := f.do(http.MethodGet, path, "")
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"), path)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"), path)
		assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"), path)
		assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"), path)
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'", path)
	}
}

func TestRouter_NoRoute(t *testing.T) {
	f := newFixture(t, allowAll{}, 1<<20)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/does-not-exist"},
		{http.MethodGet, "/api/orders"},
		{http.MethodDelete, "/api/order/cancel-order/ord-1"},
	} {
		w := f.do(tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		assert.Equal(t, "Route not found", decode[map[string]string](t, w)["message"], tc.path)
	}
}

func TestRouter_Swagger(t *testing.T) {
	f := newFixture(t, allowAll{}, 1<<20)

	w := f.do(http.MethodGet, "/swagger/index.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")
}
