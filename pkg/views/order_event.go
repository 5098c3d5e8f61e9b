package views

import (
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
)

// OrderEvent is the payload published on the order events topic for downstream
// collaborators (confirmation mails, restock, analytics).
type OrderEvent struct {
	Type        string           `json:"type"`
	OrderID     string           `json:"orderId"`
	UserID      int64            `json:"userId"`
	TotalAmount int64            `json:"totalAmount,omitempty"`
	Status      pkg.OrderStatus  `json:"status"`
	Phone       string           `json:"phone,omitempty"`
	Items       []OrderEventItem `json:"items,omitempty"`
	TraceID     string           `json:"traceId,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

type OrderEventItem struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int32  `json:"quantity"`
	Price       int64  `json:"price"`
}
