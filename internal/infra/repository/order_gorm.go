package repository

import (
	"context"
	"errors"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// 行ロック付きで取得（トランザクション内で使う）
func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByCustomerID(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListByStore(ctx context.Context, f repo.StoreOrderListFilter) ([]model.Order, int64, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("store_id = ?", f.StoreID)

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("order_status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc, id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

type storeStatsRow struct {
	TotalOrders       int64
	TotalRevenueCents int64
	PendingOrders     int64
	CompletedOrders   int64
	CancelledOrders   int64
	TodayOrders       int64
}

// 店舗の集計。売上は支払い済みの注文だけ
func (r *OrderGormRepository) StatsByStore(ctx context.Context, storeID int64, since time.Time) (repo.StoreOrderStats, error) {
	var row storeStatsRow
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select(
			"COUNT(*) AS total_orders, "+
				"COALESCE(SUM(CASE WHEN payment_status = ? THEN amount_cents ELSE 0 END), 0) AS total_revenue_cents, "+
				"COALESCE(SUM(CASE WHEN order_status = ? THEN 1 ELSE 0 END), 0) AS pending_orders, "+
				"COALESCE(SUM(CASE WHEN order_status = ? THEN 1 ELSE 0 END), 0) AS completed_orders, "+
				"COALESCE(SUM(CASE WHEN order_status = ? THEN 1 ELSE 0 END), 0) AS cancelled_orders, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS today_orders",
			model.PaymentStatusCompleted,
			model.OrderStatusPending,
			model.OrderStatusDelivered,
			model.OrderStatusCancelled,
			since,
		).
		Where("store_id = ?", storeID).
		Scan(&row).Error
	if err != nil {
		return repo.StoreOrderStats{}, err
	}

	stats := repo.StoreOrderStats{
		TotalOrders:       row.TotalOrders,
		TotalRevenueCents: row.TotalRevenueCents,
		PendingOrders:     row.PendingOrders,
		CompletedOrders:   row.CompletedOrders,
		CancelledOrders:   row.CancelledOrders,
		TodayOrders:       row.TodayOrders,
	}
	if row.TotalOrders > 0 {
		stats.AverageOrderCents = float64(row.TotalRevenueCents) / float64(row.TotalOrders)
	}
	return stats, nil
}

// 注文番号が重複したら ErrDuplicate
func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, repo.ErrDuplicate
		}
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) SetGatewaySession(ctx context.Context, orderID int64, sessionID string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"gateway_session_id": sessionID,
			"updated_at":         time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 支払い済みにする。pending/failedのときだけ書き込み、注文がpendingならconfirmedへ。
// s.Statusがrefundedなら注文ステータスはそのまま（取消済み）
// 更新した行が無ければ (false, nil)：既に他で確定済み
func (r *OrderGormRepository) MarkPaid(ctx context.Context, orderID int64, s repo.PaymentSettlement) (bool, error) {
	updatedAt := s.SettledAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	status := s.Status
	if status == "" {
		status = model.PaymentStatusCompleted
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status IN ?", orderID, []model.PaymentStatus{
			model.PaymentStatusPending,
			model.PaymentStatusFailed,
		}).
		Updates(map[string]any{
			"payment_status":            status,
			"gateway_payment_intent_id": s.PaymentIntentID,
			"order_status": gorm.Expr(
				"CASE WHEN order_status = ? THEN ? ELSE order_status END",
				model.OrderStatusPending, model.OrderStatusConfirmed,
			),
			"updated_at": updatedAt,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// pendingのときだけfailedにする（確定済み・返金済みは触らない）
func (r *OrderGormRepository) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": model.PaymentStatusFailed,
			"updated_at":     time.Now(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 読んだ時点のステータスと一致するときだけ遷移（compare-and-set）
func (r *OrderGormRepository) ApplyTransition(ctx context.Context, orderID int64, t repo.StatusTransition) error {
	updates := map[string]any{
		"order_status":   t.To,
		"payment_status": t.PaymentStatus,
		"updated_at":     time.Now(),
	}
	if t.Notes != nil {
		updates["store_notes"] = *t.Notes
	}
	if t.EstimatedMins != nil {
		updates["estimated_delivery_minutes"] = *t.EstimatedMins
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND order_status = ?", orderID, t.From).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrConflict
	}
	return nil
}

// page/limitの既定値と上限
func normalizePage(page int, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}
