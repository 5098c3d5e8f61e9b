package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/services"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/views"
	"go.uber.org/zap"
)

type OrderHandler struct {
	logger   *zap.Logger
	service  services.OrderService
	notifier services.NotificationService
}

func NewOrderHandler(logger *zap.Logger, svc services.OrderService, notifier services.NotificationService) *OrderHandler {
	return &OrderHandler{logger: logger, service: svc, notifier: notifier}
}

// RegisterRoutes registers order routes under /order on the provided group.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/order")
	g.POST("", h.PlaceOrder)
	g.GET("/order-history/:id", h.GetOrderHistory)
	g.PUT("/cancel-order/:orderId", h.CancelOrder)
	g.POST("/send-invoice", h.SendInvoice)
}

// PlaceOrder godoc
// @Summary     Place an order
// @Description Persists the order and its items atomically. A reused order_id is rejected.
// @Tags        order
// @Accept      json
// @Produce     json
// @Param       X-Trace-Id header string false "trace id"
// @Param       request body views.PlaceOrderRequest true "checkout"
// @Success     201 {object} views.PlaceOrderResponse
// @Failure     400 {object} pkg.ErrorResponse
// @Failure     413 {object} pkg.ErrorResponse
// @Failure     500 {object} pkg.ErrorResponse
// @Router      /api/order [post]
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	var req views.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, traceID, bindError(err))
		return
	}

	order, err := h.service.PlaceOrder(c.Request.Context(), traceID, req)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}

	// The order is committed; a failed announcement is logged, never returned.
	if err = h.notifier.OrderPlaced(context.WithoutCancel(c.Request.Context()), traceID, order); err != nil {
		h.logger.Warn("order placed event not published",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.OrderId, order.OrderID),
			zap.Error(err))
	}

	c.JSON(http.StatusCreated, views.PlaceOrderResponse{Success: true, OrderID: order.OrderID})
}

// GetOrderHistory godoc
// @Summary     Order history of a user
// @Tags        order
// @Produce     json
// @Param       id path int true "user id"
// @Success     200 {array} views.OrderHistoryEntry
// @Failure     400 {object} pkg.ErrorResponse
// @Failure     500 {object} pkg.ErrorResponse
// @Router      /api/order/order-history/{id} [get]
func (h *OrderHandler) GetOrderHistory(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "user id must be a positive integer", err))
		return
	}

	history, err := h.service.GetOrderHistory(c.Request.Context(), traceID, userID)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// CancelOrder godoc
// @Summary     Cancel an order within 24 hours of placement
// @Tags        order
// @Produce     json
// @Param       orderId path string true "order id"
// @Success     200 {object} views.StatusResponse
// @Failure     400 {object} pkg.ErrorResponse
// @Failure     404 {object} pkg.ErrorResponse
// @Router      /api/order/cancel-order/{orderId} [put]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	orderID := c.Param("orderId")
	order, err := h.service.CancelOrder(c.Request.Context(), traceID, orderID)
	if err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}

	if err = h.notifier.OrderCancelled(context.WithoutCancel(c.Request.Context()), traceID, order); err != nil {
		h.logger.Warn("order cancelled event not published",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.OrderId, orderID),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, views.StatusResponse{Success: true, Message: "Order cancelled successfully"})
}

// SendInvoice godoc
// @Summary     Mail an invoice PDF to the customer
// @Tags        order
// @Accept      json
// @Produce     json
// @Param       request body views.SendInvoiceRequest true "invoice"
// @Success     200 {object} views.StatusResponse
// @Failure     400 {object} pkg.ErrorResponse
// @Failure     500 {object} pkg.ErrorResponse
// @Router      /api/order/send-invoice [post]
func (h *OrderHandler) SendInvoice(c *gin.Context) {
	traceID, ok := requireTraceID(c, h.logger)
	if !ok {
		return
	}

	var req views.SendInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, traceID, bindError(err))
		return
	}
	document, err := base64.StdEncoding.DecodeString(req.PdfAttachment)
	if err != nil {
		respondError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "pdf_attachment must be base64", err))
		return
	}

	if err = h.notifier.SendInvoice(c.Request.Context(), traceID, req.OrderID, req.Email, document); err != nil {
		respondError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, views.StatusResponse{Success: true, Message: "Invoice sent successfully"})
}
