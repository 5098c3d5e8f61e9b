package models

import (
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/views"
)

// Order maps to table `orders`
type Order struct {
	OrderID         string
	UserID          int64
	TotalAmount     int64 // minor currency unit
	ShippingAddress string
	PaymentMethod   string
	Phone           *string
	Status          pkg.OrderStatus
	CreatedAt       time.Time // order_date
	UpdatedAt       time.Time
	// Associations
	Items []OrderItem
}

// OrderItem maps to table `order_items`
type OrderItem struct {
	ID          int64
	OrderID     string
	ProductID   int64
	Quantity    int32
	Price       int64 // unit price at purchase time, minor currency unit
	ProductName *string
}

// CancellableAt reports whether the order may still transition to Cancelled at now.
// The window is half-open: an order exactly `window` old is no longer cancellable.
func (o Order) CancellableAt(now time.Time, window time.Duration) bool {
	return now.Sub(o.CreatedAt) < window
}

func (o Order) ToOrderEvent(eventType, traceID string, occurredAt time.Time) views.OrderEvent {
	event := views.OrderEvent{
		Type:        eventType,
		OrderID:     o.OrderID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		TraceID:     traceID,
		OccurredAt:  occurredAt,
	}
	if o.Phone != nil {
		event.Phone = *o.Phone
	}
	for _, item := range o.Items {
		ei := views.OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		if item.ProductName != nil {
			ei.ProductName = *item.ProductName
		}
		event.Items = append(event.Items, ei)
	}
	return event
}
