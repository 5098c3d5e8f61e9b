package services

import (
	"context"
	"encoding/json"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/observability"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/views"
	"go.uber.org/zap"
)

type PaymentService interface {
	// CreateIntent asks the gateway for a payment order the client can settle.
	CreateIntent(ctx context.Context, traceID string, req views.CreateIntentRequest) (views.CreateIntentResponse, error)
	// VerifyClientConfirmation checks the signature the checkout widget returns after payment.
	VerifyClientConfirmation(ctx context.Context, traceID string, req views.VerifyPaymentRequest) error
	// HandleWebhook authenticates and records a gateway callback. Only a bad signature is an error.
	HandleWebhook(ctx context.Context, traceID string, payload []byte, signature, eventID string) error
}

// PaymentServiceConfig holds dependencies for payment reconciliation.
type PaymentServiceConfig struct {
	Logger        *zap.Logger
	Gateway       PaymentGateway
	Dedup         EventDeduplicator // optional
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type PaymentServiceImpl struct {
	logger        *zap.Logger
	gateway       PaymentGateway
	dedup         EventDeduplicator
	keyID         string
	keySecret     string
	webhookSecret string
}

func NewPaymentService(cfg PaymentServiceConfig) PaymentService {
	dedup := cfg.Dedup
	if dedup == nil {
		dedup = NoopEventDeduplicator{}
	}
	return &PaymentServiceImpl{
		logger:        cfg.Logger,
		gateway:       cfg.Gateway,
		dedup:         dedup,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (p *PaymentServiceImpl) CreateIntent(ctx context.Context, traceID string, req views.CreateIntentRequest) (views.CreateIntentResponse, error) {
	if req.Amount <= 0 || utils.IsEmpty(req.Receipt) {
		return views.CreateIntentResponse{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "Amount and receipt are required", nil)
	}
	currency := req.Currency
	if utils.IsEmpty(currency) {
		currency = pkg.DefaultCurrency
	}

	order, err := p.gateway.CreateOrder(ctx, traceID, GatewayOrderRequest{
		Amount:         req.Amount,
		Currency:       currency,
		Receipt:        req.Receipt,
		PaymentCapture: 1,
		Notes:          req.Notes,
	})
	if err != nil {
		return views.CreateIntentResponse{}, pkg.NewCodedError(pkg.ErrPaymentGatewayCode, err)
	}

	p.logger.Info("payment intent created",
		zap.String(pkg.TraceId, traceID),
		zap.String("gateway_order_id", order.ID),
		zap.String("receipt", req.Receipt),
		zap.Int64("amount", order.Amount))
	return views.CreateIntentResponse{
		Success:  true,
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Key:      p.keyID,
		Order:    order.Raw,
	}, nil
}

func (p *PaymentServiceImpl) VerifyClientConfirmation(ctx context.Context, traceID string, req views.VerifyPaymentRequest) error {
	if utils.IsEmpty(req.PaymentID) || utils.IsEmpty(req.OrderID) || utils.IsEmpty(req.Signature) {
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "Payment ID, Order ID and Signature are required", nil)
	}

	if !utils.VerifyHMACSHA256(p.keySecret, []byte(req.OrderID+"|"+req.PaymentID), req.Signature) {
		observability.SignatureFailures.WithLabelValues("confirmation").Inc()
		p.logger.Warn("payment confirmation signature mismatch",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.OrderId, req.OrderID),
			zap.String(pkg.PaymentId, req.PaymentID))
		return pkg.NewCodedError(pkg.ErrSignatureMismatchCode, nil)
	}

	p.logger.Info("payment confirmation verified",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.OrderId, req.OrderID),
		zap.String(pkg.PaymentId, req.PaymentID))
	return nil
}

func (p *PaymentServiceImpl) HandleWebhook(ctx context.Context, traceID string, payload []byte, signature, eventID string) error {
	// Nothing below runs for an unauthenticated payload.
	if !utils.VerifyHMACSHA256(p.webhookSecret, payload, signature) {
		observability.SignatureFailures.WithLabelValues("webhook").Inc()
		p.logger.Warn("webhook signature rejected", zap.String(pkg.TraceId, traceID))
		return pkg.NewCodedError(pkg.ErrInvalidWebhookSignatureCode, nil)
	}

	if !utils.IsEmpty(eventID) {
		first, err := p.dedup.FirstSeen(ctx, eventID)
		switch {
		case err != nil:
			p.logger.Warn("webhook dedup unavailable, handling event",
				zap.String(pkg.TraceId, traceID),
				zap.String("event_id", eventID),
				zap.Error(err))
		case !first:
			p.logger.Info("duplicate webhook acknowledged",
				zap.String(pkg.TraceId, traceID),
				zap.String("event_id", eventID))
			return nil
		}
	}

	var event views.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.logger.Error("verified webhook is not valid json",
			zap.String(pkg.TraceId, traceID),
			zap.Error(err))
		return nil
	}
	p.dispatch(traceID, event)
	return nil
}

func (p *PaymentServiceImpl) dispatch(traceID string, event views.WebhookEvent) {
	fields := []zap.Field{zap.String(pkg.TraceId, traceID), zap.String(pkg.EventType, event.Event)}
	if event.Payload.Payment != nil {
		payment := event.Payload.Payment.Entity
		fields = append(fields,
			zap.String(pkg.PaymentId, payment.ID),
			zap.String("gateway_order_id", payment.OrderID),
			zap.Int64("amount", payment.Amount))
	} else if event.Payload.Order != nil {
		fields = append(fields, zap.String("gateway_order_id", event.Payload.Order.Entity.ID))
	}

	switch event.Event {
	case pkg.WebhookPaymentCaptured:
		observability.WebhookEvents.WithLabelValues(event.Event).Inc()
		p.logger.Info("payment captured", fields...)
	case pkg.WebhookPaymentFailed:
		observability.WebhookEvents.WithLabelValues(event.Event).Inc()
		if event.Payload.Payment != nil {
			fields = append(fields,
				zap.String("error_code", event.Payload.Payment.Entity.ErrorCode),
				zap.String("error_description", event.Payload.Payment.Entity.ErrorDescription))
		}
		p.logger.Warn("payment failed", fields...)
	case pkg.WebhookOrderPaid:
		observability.WebhookEvents.WithLabelValues(event.Event).Inc()
		p.logger.Info("gateway order paid", fields...)
	default:
		observability.WebhookEvents.WithLabelValues("other").Inc()
		p.logger.Info("unhandled webhook event ignored", fields...)
	}
}
