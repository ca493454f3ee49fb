package repository

import (
	"context"
	"time"

	"foodorder/internal/domain/model"
)

type StoreOrderListFilter struct {
	StoreID int64
	Status  string
	Page    int
	Limit   int
}

// 支払い確定時に書き込む値
type PaymentSettlement struct {
	PaymentIntentID string
	SettledAt       time.Time
	// completed（通常）か refunded（取消済みの注文に入金があった）。空ならcompleted
	Status model.PaymentStatus
}

// 店舗側の遷移で書き込む値（読んだ時点のステータスを条件にする）
type StatusTransition struct {
	From          model.OrderStatus
	To            model.OrderStatus
	PaymentStatus model.PaymentStatus
	Notes         *string
	EstimatedMins *int
}

type StoreOrderStats struct {
	TotalOrders       int64   `json:"total_orders"`
	TotalRevenueCents int64   `json:"total_revenue_cents"`
	PendingOrders     int64   `json:"pending_orders"`
	CompletedOrders   int64   `json:"completed_orders"`
	CancelledOrders   int64   `json:"cancelled_orders"`
	AverageOrderCents float64 `json:"average_order_cents"`
	TodayOrders       int64   `json:"today_orders"`
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	ListByCustomerID(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error)
	ListByStore(ctx context.Context, f StoreOrderListFilter) ([]model.Order, int64, error)
	StatsByStore(ctx context.Context, storeID int64, since time.Time) (StoreOrderStats, error)

	// 注文番号が重複したら ErrDuplicate
	Create(ctx context.Context, order model.Order) (int64, error)

	SetGatewaySession(ctx context.Context, orderID int64, sessionID string) error

	// 支払い済み（またはrefunded）にする。pending/failed以外なら (false, nil)
	MarkPaid(ctx context.Context, orderID int64, s PaymentSettlement) (bool, error)

	// pendingのときだけfailedにする。更新したかを返す
	MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error)

	// From と一致するときだけ遷移。一致しなければ ErrConflict
	ApplyTransition(ctx context.Context, orderID int64, t StatusTransition) error
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
