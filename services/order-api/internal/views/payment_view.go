package views

// CreateIntentRequest is the body of POST /payments/create-razorpay-order.
// Presence rules are enforced by the payment service so the error message matches the gateway contract.
type CreateIntentRequest struct {
	Amount   int64             `json:"amount"` // minor currency unit
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type CreateIntentResponse struct {
	Success  bool           `json:"success"`
	ID       string         `json:"id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Key      string         `json:"key"`
	Order    map[string]any `json:"order"`
}

// VerifyPaymentRequest is the body of POST /payments/verify-razorpay-payment.
type VerifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature"`
}

// WebhookEvent is the subset of a Razorpay webhook envelope the service reads.
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

type WebhookPayload struct {
	Payment *WebhookEntity[WebhookPayment] `json:"payment,omitempty"`
	Order   *WebhookEntity[WebhookOrder]   `json:"order,omitempty"`
}

type WebhookEntity[T any] struct {
	Entity T `json:"entity"`
}

type WebhookPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type WebhookOrder struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
}
