package models

import (
	"testing"
	"time"

	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/stretchr/testify/assert"
)

func TestOrder_CancellableAt(t *testing.T) {
	created := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	order := Order{CreatedAt: created}
	window := 24 * time.Hour

	assert.True(t, order.CancellableAt(created, window))
	assert.True(t, order.CancellableAt(created.Add(23*time.Hour+59*time.Minute), window))
	assert.False(t, order.CancellableAt(created.Add(24*time.Hour), window))
	assert.False(t, order.CancellableAt(created.Add(24*time.Hour+time.Second), window))
}

func TestOrder_ToOrderEvent(t *testing.T) {
	phone := "+91 98450 00000"
	name := "kettle"
	now := time.Now().UTC()
	order := Order{
		OrderID:     "o-1",
		UserID:      7,
		TotalAmount: 2500,
		Phone:       &phone,
		Status:      pkg.OrderStatusPlaced,
		Items: []OrderItem{
			{ProductID: 1, Quantity: 2, Price: 1000, ProductName: &name},
			{ProductID: 2, Quantity: 1, Price: 500},
		},
	}

	event := order.ToOrderEvent(pkg.EventOrderPlaced, "trace-1", now)
	assert.Equal(t, pkg.EventOrderPlaced, event.Type)
	assert.Equal(t, "o-1", event.OrderID)
	assert.Equal(t, int64(7), event.UserID)
	assert.Equal(t, phone, event.Phone)
	assert.Equal(t, "trace-1", event.TraceID)
	assert.Equal(t, now, event.OccurredAt)
	assert.Len(t, event.Items, 2)
	assert.Equal(t, "kettle", event.Items[0].ProductName)
	assert.Empty(t, event.Items[1].ProductName)
}
