package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/database/dbtest"
	"github.com/nimeshabuddhika/storefront-orders/pkg/models"
	"github.com/nimeshabuddhika/storefront-orders/pkg/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// failingItemRepo fails the n-th item insert of every order.
type failingItemRepo struct {
	repositories.OrderRepository
	failAt int32
	calls  atomic.Int32
}

func (f *failingItemRepo) CreateItem(ctx context.Context, tx pgx.Tx, item models.OrderItem) error {
	if f.calls.Add(1) == f.failAt {
		return errors.New("disk full")
	}
	return f.OrderRepository.CreateItem(ctx, tx, item)
}

func TestOrderService_Postgres(t *testing.T) {
	dsn := dbtest.StartPostgres(t)
	db := dbtest.NewDB(t, dsn, 10)
	ctx := context.Background()

	svc := NewOrderService(OrderServiceConfig{
		Logger:    zap.NewNop(),
		DB:        db,
		OrderRepo: repositories.NewOrderRepository(),
	})

	t.Run("concurrent placements of one id commit exactly once", func(t *testing.T) {
		const attempts = 20
		var wg sync.WaitGroup
		var ok, dup atomic.Int32
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.PlaceOrder(ctx, "trace", validOrder("pg-concurrent", 3))
				switch {
				case err == nil:
					ok.Add(1)
				case pkg.HasCode(err, pkg.ErrDuplicateOrderCode):
					dup.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(attempts-1), dup.Load())

		var items int
		require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, "pg-concurrent").Scan(&items))
		assert.Equal(t, 3, items)
	})

	t.Run("failure on the third of five items leaves nothing behind", func(t *testing.T) {
		failing := NewOrderService(OrderServiceConfig{
			Logger:    zap.NewNop(),
			DB:        db,
			OrderRepo: &failingItemRepo{OrderRepository: repositories.NewOrderRepository(), failAt: 3},
		})
		_, err := failing.PlaceOrder(ctx, "trace", validOrder("pg-partial", 5))
		require.Error(t, err)

		var orders, items int
		require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE order_id = $1`, "pg-partial").Scan(&orders))
		require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, "pg-partial").Scan(&items))
		assert.Zero(t, orders)
		assert.Zero(t, items)
	})

	t.Run("concurrent cancels transition once", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, "trace", validOrder("pg-cancel", 1))
		require.NoError(t, err)

		const attempts = 10
		var wg sync.WaitGroup
		var ok, already atomic.Int32
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CancelOrder(ctx, "trace", "pg-cancel")
				switch {
				case err == nil:
					ok.Add(1)
				case pkg.HasCode(err, pkg.ErrOrderAlreadyCancelledCode):
					already.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(attempts-1), already.Load())
	})

	t.Run("history through the pooled reader", func(t *testing.T) {
		history, err := svc.GetOrderHistory(ctx, "trace", 101)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "pg-concurrent", history[0].OrderID)
		assert.Len(t, history[0].Items, 3)
		assert.Equal(t, pkg.OrderStatusCancelled, history[1].OrderStatus)
		assert.WithinDuration(t, time.Now(), history[1].OrderDate, time.Minute)
	})
}
