package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"

	// Razorpay webhook headers
	HeaderRazorpaySignature string = "X-Razorpay-Signature"
	HeaderRazorpayEventId   string = "X-Razorpay-Event-Id"
)

const (
	TraceId   string = "trace_id"
	OrderId   string = "order_id"
	UserId    string = "user_id"
	PaymentId string = "payment_id"
	EventType string = "event_type"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "Placed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// IsTerminal reports whether no further transition is allowed out of the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled
}

// Order event types published on the order events topic.
const (
	EventOrderPlaced    string = "order.placed"
	EventOrderCancelled string = "order.cancelled"
)

// Razorpay webhook event types the service reacts to.
const (
	WebhookPaymentCaptured string = "payment.captured"
	WebhookPaymentFailed   string = "payment.failed"
	WebhookOrderPaid       string = "order.paid"
)

const DefaultCurrency = "INR"
