package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/models"
	"github.com/nimeshabuddhika/storefront-orders/pkg/repositories"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/observability"
	"github.com/nimeshabuddhika/storefront-orders/services/order-api/internal/views"
	"go.uber.org/zap"
)

// Store is the persistence gateway the ledger runs on. *database.DB satisfies it.
type Store interface {
	repositories.Querier
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type OrderService interface {
	// PlaceOrder persists an order and all of its items atomically and returns the order id.
	PlaceOrder(ctx context.Context, traceID string, req views.PlaceOrderRequest) (models.Order, error)
	// CancelOrder moves an order to Cancelled while it is inside the cancellation window
	// and returns the order as it stands after the transition.
	CancelOrder(ctx context.Context, traceID string, orderID string) (models.Order, error)
	// GetOrderHistory returns the user's orders, oldest first, each with its items.
	GetOrderHistory(ctx context.Context, traceID string, userID int64) ([]views.OrderHistoryEntry, error)
}

// OrderServiceConfig holds dependencies for the order ledger.
type OrderServiceConfig struct {
	Logger       *zap.Logger
	DB           Store
	OrderRepo    repositories.OrderRepository
	CancelWindow time.Duration
	Clock        func() time.Time // defaults to time.Now
}

type OrderServiceImpl struct {
	logger       *zap.Logger
	db           Store
	orderRepo    repositories.OrderRepository
	cancelWindow time.Duration
	now          func() time.Time
}

func NewOrderService(cfg OrderServiceConfig) OrderService {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	window := cfg.CancelWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &OrderServiceImpl{
		logger:       cfg.Logger,
		db:           cfg.DB,
		orderRepo:    cfg.OrderRepo,
		cancelWindow: window,
		now:          now,
	}
}

func (s *OrderServiceImpl) PlaceOrder(ctx context.Context, traceID string, req views.PlaceOrderRequest) (models.Order, error) {
	if err := validatePlaceOrder(req); err != nil {
		return models.Order{}, err
	}

	order := toOrderModel(req, s.now().UTC())
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Fast path only: two concurrent requests can both pass this check,
		// the primary key on orders.order_id rejects the second insert.
		exists, err := s.orderRepo.ExistsByOrderID(ctx, tx, order.OrderID)
		if err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		if exists {
			return pkg.NewCodedError(pkg.ErrDuplicateOrderCode, nil)
		}

		if err = s.orderRepo.Create(ctx, tx, order); err != nil {
			return s.mapInsertError(traceID, order.OrderID, err)
		}
		for i, item := range order.Items {
			if err = s.orderRepo.CreateItem(ctx, tx, item); err != nil {
				s.logger.Error("order item insert failed, rolling back order",
					zap.String(pkg.TraceId, traceID),
					zap.String(pkg.OrderId, order.OrderID),
					zap.Int("item_index", i),
					zap.Error(err))
				return s.mapInsertError(traceID, order.OrderID, err)
			}
		}
		return nil
	})
	if err != nil {
		if pkg.HasCode(err, pkg.ErrDuplicateOrderCode) {
			observability.OrdersRejected.WithLabelValues("duplicate").Inc()
		} else {
			observability.OrdersRejected.WithLabelValues("persistence").Inc()
		}
		return models.Order{}, wrapPersistence(err)
	}

	observability.OrdersPlaced.Inc()
	s.logger.Info("order placed",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.OrderId, order.OrderID),
		zap.Int64(pkg.UserId, order.UserID),
		zap.Int64("total_amount", order.TotalAmount),
		zap.Int("items", len(order.Items)),
	)
	return order, nil
}

func (s *OrderServiceImpl) CancelOrder(ctx context.Context, traceID string, orderID string) (models.Order, error) {
	if utils.IsEmpty(orderID) {
		return models.Order{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "order id is required", nil)
	}

	var cancelled models.Order
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := s.orderRepo.FindByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pkg.NewAppError(pkg.ErrRecordNotFoundCode, "Order not found", err)
			}
			return pkg.HandleSQLError(traceID, s.logger, err)
		}

		now := s.now()
		if !order.CancellableAt(now, s.cancelWindow) {
			return pkg.NewCodedError(pkg.ErrCancelWindowExpiredCode,
				fmt.Errorf("order age %s exceeds %s", now.Sub(order.CreatedAt).Truncate(time.Second), s.cancelWindow))
		}
		if order.Status.IsTerminal() {
			return pkg.NewCodedError(pkg.ErrOrderAlreadyCancelledCode, nil)
		}

		changed, err := s.orderRepo.UpdateStatus(ctx, tx, orderID, pkg.OrderStatusCancelled, now.UTC())
		if err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		if changed == 0 {
			// the row lock makes this unreachable unless the row changed under a weaker isolation
			return pkg.NewCodedError(pkg.ErrOrderAlreadyCancelledCode, nil)
		}
		order.Status = pkg.OrderStatusCancelled
		order.UpdatedAt = now.UTC()
		cancelled = order
		return nil
	})
	if err != nil {
		observability.CancellationsRejected.WithLabelValues(rejectReason(err)).Inc()
		return models.Order{}, wrapPersistence(err)
	}

	observability.OrdersCancelled.Inc()
	s.logger.Info("order cancelled",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.OrderId, orderID),
		zap.Int64(pkg.UserId, cancelled.UserID))
	return cancelled, nil
}

func (s *OrderServiceImpl) GetOrderHistory(ctx context.Context, traceID string, userID int64) ([]views.OrderHistoryEntry, error) {
	if userID <= 0 {
		return nil, pkg.NewAppError(pkg.ErrInvalidInputCode, "user id must be positive", nil)
	}

	history := make([]views.OrderHistoryEntry, 0)
	for order, err := range s.orderRepo.HistoryByUserID(ctx, s.db, userID) {
		if err != nil {
			return nil, pkg.HandleSQLError(traceID, s.logger, err)
		}
		history = append(history, toHistoryEntry(order))
	}
	s.logger.Debug("order history loaded",
		zap.String(pkg.TraceId, traceID),
		zap.Int64(pkg.UserId, userID),
		zap.Int("orders", len(history)))
	return history, nil
}

// mapInsertError turns a unique violation into DuplicateOrder; the rest goes through the SQL mapper.
func (s *OrderServiceImpl) mapInsertError(traceID, orderID string, err error) error {
	if pkg.IsUniqueViolation(err) {
		s.logger.Warn("order id collided at insert",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.OrderId, orderID))
		return pkg.NewCodedError(pkg.ErrDuplicateOrderCode, err)
	}
	return pkg.HandleSQLError(traceID, s.logger, err)
}

// wrapPersistence keeps AppErrors as they are and marks everything else (commit, pool, network) as a store failure.
func wrapPersistence(err error) error {
	var appErr pkg.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return pkg.NewAppError(pkg.ErrSQLUnknownCode, "persistence failure", err)
}

func rejectReason(err error) string {
	switch {
	case pkg.HasCode(err, pkg.ErrRecordNotFoundCode):
		return "not_found"
	case pkg.HasCode(err, pkg.ErrCancelWindowExpiredCode):
		return "window_expired"
	case pkg.HasCode(err, pkg.ErrOrderAlreadyCancelledCode):
		return "already_cancelled"
	default:
		return "persistence"
	}
}

func validatePlaceOrder(req views.PlaceOrderRequest) error {
	switch {
	case utils.IsEmpty(req.OrderID):
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "order_id is required", nil)
	case req.UserID <= 0:
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "user id must be positive", nil)
	case req.TotalAmount <= 0:
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "total_amount must be positive", nil)
	case utils.IsEmpty(req.ShippingAddress):
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "shipping_address is required", nil)
	case utils.IsEmpty(req.PaymentMethod):
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "payment_method is required", nil)
	case len(req.Items) == 0:
		return pkg.NewAppError(pkg.ErrInvalidInputCode, "order must contain at least one item", nil)
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 || item.Price <= 0 {
			return pkg.NewAppError(pkg.ErrInvalidInputCode,
				fmt.Sprintf("item %d: product_id, quantity and price must be positive", i), nil)
		}
	}
	return nil
}

func toOrderModel(req views.PlaceOrderRequest, createdAt time.Time) models.Order {
	order := models.Order{
		OrderID:         req.OrderID,
		UserID:          req.UserID,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Phone:           req.Phone,
		Status:          pkg.OrderStatusPlaced,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		Items:           make([]models.OrderItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:     req.OrderID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Price:       item.Price,
			ProductName: item.ProductName,
		})
	}
	return order
}

func toHistoryEntry(order models.Order) views.OrderHistoryEntry {
	entry := views.OrderHistoryEntry{
		OrderID:         order.OrderID,
		OrderDate:       order.CreatedAt,
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		OrderStatus:     order.Status,
		Phone:           order.Phone,
		Items:           make([]views.OrderItemHistory, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		entry.Items = append(entry.Items, views.OrderItemHistory{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Price:       item.Price,
			ProductName: item.ProductName,
		})
	}
	return entry
}
