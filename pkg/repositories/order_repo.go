package repositories

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/models"
)

// Querier is the subset of pgx shared by *database.DB and pgx.Tx, so reads can run
// either inside a unit of work or against the pooled reader.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type OrderRepository interface {
	// Create inserts a new order. A second insert with the same order id fails with a unique violation.
	Create(ctx context.Context, tx pgx.Tx, order models.Order) error
	// CreateItem inserts a line item of an existing order.
	CreateItem(ctx context.Context, tx pgx.Tx, item models.OrderItem) error
	// ExistsByOrderID is the duplicate fast path; the primary key stays the real guard.
	ExistsByOrderID(ctx context.Context, q Querier, orderID string) (bool, error)
	// FindByOrderIDForUpdate loads an order and locks its row until the transaction ends.
	FindByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (models.Order, error)
	// UpdateStatus moves an order to status unless it already is in it. It returns the number of rows changed.
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID string, status pkg.OrderStatus, updatedAt time.Time) (int64, error)
	// HistoryByUserID streams the user's orders, oldest first, each with its items in insertion order.
	HistoryByUserID(ctx context.Context, q Querier, userID int64) iter.Seq2[models.Order, error]
}

type OrderRepositoryImpl struct {
}

func NewOrderRepository() OrderRepository {
	return &OrderRepositoryImpl{}
}

func (o OrderRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, order models.Order) error {
	_, err := tx.Exec(ctx, `
						INSERT INTO orders (order_id, user_id, total_amount, shipping_address, payment_method, phone, order_status, order_date, updated_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.OrderID,
		order.UserID,
		order.TotalAmount,
		order.ShippingAddress,
		order.PaymentMethod,
		order.Phone,
		order.Status,
		order.CreatedAt,
		order.CreatedAt,
	)
	return err
}

func (o OrderRepositoryImpl) CreateItem(ctx context.Context, tx pgx.Tx, item models.OrderItem) error {
	_, err := tx.Exec(ctx, `
						INSERT INTO order_items (order_id, product_id, quantity, price, product_name)
						VALUES ($1, $2, $3, $4, $5)`,
		item.OrderID,
		item.ProductID,
		item.Quantity,
		item.Price,
		item.ProductName,
	)
	return err
}

func (o OrderRepositoryImpl) ExistsByOrderID(ctx context.Context, q Querier, orderID string) (bool, error) {
	if orderID == "" {
		return false, errors.New("order id cannot be empty")
	}
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (o OrderRepositoryImpl) FindByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (models.Order, error) {
	var order models.Order
	err := tx.QueryRow(ctx, `
						SELECT order_id, user_id, total_amount, shipping_address, payment_method, phone, order_status, order_date, updated_at
						FROM orders WHERE order_id = $1 FOR UPDATE`, orderID).Scan(
		&order.OrderID,
		&order.UserID,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.Phone,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

func (o OrderRepositoryImpl) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID string, status pkg.OrderStatus, updatedAt time.Time) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE orders SET order_status = $1, updated_at = $2 WHERE order_id = $3 AND order_status <> $1`,
		status, updatedAt, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// HistoryByUserID reads orders and items with a single join. Rows arrive sorted by order, so each
// order is yielded as soon as the next one starts; the rows are closed when iteration stops.
func (o OrderRepositoryImpl) HistoryByUserID(ctx context.Context, q Querier, userID int64) iter.Seq2[models.Order, error] {
	return func(yield func(models.Order, error) bool) {
		rows, err := q.Query(ctx, `
							SELECT o.order_id, o.user_id, o.total_amount, o.shipping_address, o.payment_method, o.phone,
							       o.order_status, o.order_date, o.updated_at,
							       i.id, i.product_id, i.quantity, i.price, i.product_name
							FROM orders o
							LEFT JOIN order_items i ON i.order_id = o.order_id
							WHERE o.user_id = $1
							ORDER BY o.order_date, o.order_id, i.id`, userID)
		if err != nil {
			yield(models.Order{}, err)
			return
		}
		defer rows.Close()

		var current *models.Order
		for rows.Next() {
			var (
				order       models.Order
				itemID      *int64
				productID   *int64
				quantity    *int32
				price       *int64
				productName *string
			)
			if err = rows.Scan(
				&order.OrderID,
				&order.UserID,
				&order.TotalAmount,
				&order.ShippingAddress,
				&order.PaymentMethod,
				&order.Phone,
				&order.Status,
				&order.CreatedAt,
				&order.UpdatedAt,
				&itemID,
				&productID,
				&quantity,
				&price,
				&productName,
			); err != nil {
				yield(models.Order{}, err)
				return
			}

			if current != nil && current.OrderID != order.OrderID {
				if !yield(*current, nil) {
					return
				}
				current = nil
			}
			if current == nil {
				order.Items = []models.OrderItem{}
				current = &order
			}
			if itemID != nil {
				current.Items = append(current.Items, models.OrderItem{
					ID:          *itemID,
					OrderID:     current.OrderID,
					ProductID:   *productID,
					Quantity:    *quantity,
					Price:       *price,
					ProductName: productName,
				})
			}
		}
		if err = rows.Err(); err != nil {
			yield(models.Order{}, err)
			return
		}
		if current != nil {
			yield(*current, nil)
		}
	}
}
