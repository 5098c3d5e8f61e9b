package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/models"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/nimeshabuddhika/storefront-orders/pkg/views"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/observability"
	"go.uber.org/zap"
)

const invoiceSubject = "Your Invoice"

var invoiceTemplate = template.Must(template.New("invoice").Parse(
	`<p>Thank you for shopping with us.</p><p>Please find the invoice for order <strong>{{.OrderID}}</strong> attached.</p>`))

type NotificationService interface {
	// OrderPlaced announces a committed order to downstream collaborators.
	OrderPlaced(ctx context.Context, traceID string, order models.Order) error
	// OrderCancelled announces a cancellation so refund and restock can follow.
	OrderCancelled(ctx context.Context, traceID string, order models.Order) error
	// SendInvoice mails the invoice document of an order to the customer.
	SendInvoice(ctx context.Context, traceID string, orderID, recipient string, document []byte) error
}

// NotificationServiceConfig holds dependencies for outbound notifications.
type NotificationServiceConfig struct {
	Logger    *zap.Logger
	Publisher OrderEventPublisher
	Mailer    Mailer
	Clock     func() time.Time
}

type NotificationServiceImpl struct {
	logger    *zap.Logger
	publisher OrderEventPublisher
	mailer    Mailer
	now       func() time.Time
}

func NewNotificationService(cfg NotificationServiceConfig) NotificationService {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &NotificationServiceImpl{
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
		mailer:    cfg.Mailer,
		now:       now,
	}
}

func (n *NotificationServiceImpl) OrderPlaced(ctx context.Context, traceID string, order models.Order) error {
	return n.publish(ctx, order.ToOrderEvent(pkg.EventOrderPlaced, traceID, n.now().UTC()))
}

func (n *NotificationServiceImpl) OrderCancelled(ctx context.Context, traceID string, order models.Order) error {
	return n.publish(ctx, order.ToOrderEvent(pkg.EventOrderCancelled, traceID, n.now().UTC()))
}

func (n *NotificationServiceImpl) publish(ctx context.Context, event views.OrderEvent) error {
	if err := n.publisher.Publish(ctx, event); err != nil {
		observability.NotificationsFailed.WithLabelValues("event").Inc()
		return pkg.NewCodedError(pkg.ErrNotificationDeliveryFailCode, err)
	}
	return nil
}

func (n *NotificationServiceImpl) SendInvoice(ctx context.Context, traceID string, orderID, recipient string, document []byte) error {
	if utils.IsEmpty(orderID) || len(document) == 0 {
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "orderId and pdf_attachment are required", nil)
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid email address", err)
	}

	var body bytes.Buffer
	if err := invoiceTemplate.Execute(&body, struct{ OrderID string }{OrderID: orderID}); err != nil {
		return pkg.NewCodedError(pkg.ErrNotificationDeliveryFailCode, err)
	}

	err := n.mailer.Send(ctx, traceID, Mail{
		To:      []string{recipient},
		Subject: invoiceSubject,
		HTML:    body.String(),
		Attachments: []Attachment{{
			Filename:    fmt.Sprintf("invoice_%s.pdf", orderID),
			ContentType: "application/pdf",
			Content:     document,
		}},
	})
	if err != nil {
		observability.NotificationsFailed.WithLabelValues("invoice").Inc()
		return pkg.NewCodedError(pkg.ErrNotificationDeliveryFailCode, err)
	}
	n.logger.Info("invoice sent", zap.String(pkg.TraceId, traceID), zap.String(pkg.OrderId, orderID))
	return nil
}
