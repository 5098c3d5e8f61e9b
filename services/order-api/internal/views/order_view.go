package views

import (
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
)

// PlaceOrderRequest is the checkout body of POST /order.
type PlaceOrderRequest struct {
	OrderID         string             `json:"order_id" binding:"required,max=128"`
	UserID          int64              `json:"id" binding:"required,gt=0"`
	TotalAmount     int64              `json:"total_amount" binding:"required,gt=0"` // minor currency unit
	ShippingAddress string             `json:"shipping_address" binding:"required"`
	PaymentMethod   string             `json:"payment_method" binding:"required,max=64"`
	Phone           *string            `json:"phone" binding:"omitempty,max=32"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ProductID   int64   `json:"product_id" binding:"required,gt=0"`
	Quantity    int32   `json:"quantity" binding:"required,gt=0"`
	Price       int64   `json:"price" binding:"required,gt=0"` // unit price, minor currency unit
	ProductName *string `json:"product_name"`
}

type PlaceOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
}

// OrderHistoryEntry is one element of GET /order/order-history/:id.
type OrderHistoryEntry struct {
	OrderID         string             `json:"order_id"`
	OrderDate       time.Time          `json:"order_date"`
	TotalAmount     int64              `json:"total_amount"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	OrderStatus     pkg.OrderStatus    `json:"order_status"`
	Phone           *string            `json:"phone"`
	Items           []OrderItemHistory `json:"items"`
}

type OrderItemHistory struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	Quantity    int32   `json:"quantity"`
	Price       int64   `json:"price"`
	ProductName *string `json:"product_name"`
}

// SendInvoiceRequest is the body of POST /order/send-invoice.
type SendInvoiceRequest struct {
	OrderID       string `json:"orderId" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	PdfAttachment string `json:"pdf_attachment" binding:"required,base64"`
}

// StatusResponse is the generic {success, message} acknowledgement.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
