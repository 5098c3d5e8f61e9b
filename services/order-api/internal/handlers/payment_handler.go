package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/services"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/views"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	logger  *zap.Logger
	service services.PaymentService
}

func NewPaymentHandler(logger *zap.Logger, svc services.PaymentService) *PaymentHandler {
	return &PaymentHandler{logger: logger, service: svc}
}

// RegisterRoutes registers payment routes under /payments on the provided group.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/payments")
	g.POST("/create-razorpay-order", h.CreateIntent)
	g.POST("/verify-razorpay-payment", h.VerifyPayment)
	g.POST("/razorpay-webhook", h.Webhook)
}

// CreateIntent godoc
// @Summary     Create a Razorpay order for checkout
// @Tags        payments
// @Accept      json
// @Produce     json
// @Param       request body views.CreateIntentRequest true "intent"
// @Success     200 {object} views.CreateIntentResponse
// @Failure     400 {object} pkg.ErrorResponse
// @Failure     500 {object} pkg.ErrorResponse
// @Router      /api/payments/create-razorpay-order [post]
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	var req views.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, traceID, bindError(err))
		return
	}
	resp, err := h.service.CreateIntent(c.Request.Context(), traceID, req)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyPayment godoc
// @Summary     Verify the checkout signature returned to the client
// @Tags        payments
// @Accept      json
// @Produce     json
// @Param       request body views.VerifyPaymentRequest true "confirmation"
// @Success     200 {object} views.StatusResponse
// @Failure     400 {object} pkg.ErrorResponse
// @Router      /api/payments/verify-razorpay-payment [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	var req views.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, traceID, bindError(err))
		return
	}
	if err := h.service.VerifyClientConfirmation(c.Request.Context(), traceID, req); err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, views.StatusResponse{Success: true, Message: "Payment verified successfully"})
}

// Webhook needs the exact bytes the gateway signed, so the body is read raw and never re-encoded.
// @Summary     Razorpay webhook receiver
// @Tags        payments
// @Accept      json
// @Produce     json
// @Param       X-Razorpay-Signature header string true "HMAC-SHA256 of the body"
// @Param       X-Razorpay-Event-Id header string false "event id used for de-duplication"
// @Success     200 {object} views.StatusResponse
// @Failure     403 {object} pkg.ErrorResponse
// @Router      /api/payments/razorpay-webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, h.logger, traceID, bindError(err))
		return
	}
	err = h.service.HandleWebhook(c.Request.Context(), traceID, payload,
		c.GetHeader(pkg.HeaderRazorpaySignature), c.GetHeader(pkg.HeaderRazorpayEventId))
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, views.StatusResponse{Success: true})
}
