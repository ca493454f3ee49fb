package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"
)

// 店舗側の注文管理（一覧・集計・ステータス更新）
type StoreOrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	log        *slog.Logger
	now        func() time.Time
}

func NewStoreOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	log *slog.Logger,
) *StoreOrderUsecase {
	return &StoreOrderUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		log:        log,
		now:        time.Now,
	}
}

type UpdateOrderStatusInput struct {
	Status                   string
	Notes                    *string
	EstimatedDeliveryMinutes *int
}

type StoreOrderListInput struct {
	Status string
	Page   int
	Limit  int
}

// 監査ログに残す差分
type orderStatusSnapshot struct {
	OrderStatus   model.OrderStatus   `json:"order_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	Notes         *string             `json:"store_notes,omitempty"`
	EstimatedMins *int                `json:"estimated_delivery_minutes,omitempty"`
}

func (u *StoreOrderUsecase) ListOrders(ctx context.Context, storeID int64, in StoreOrderListInput) (OrderListOutput, error) {
	if storeID <= 0 {
		return OrderListOutput{}, Unauthorized("unauthorized")
	}
	page, limit, err := checkPage(in.Page, in.Limit)
	if err != nil {
		return OrderListOutput{}, err
	}

	status := strings.TrimSpace(in.Status)
	if status != "" {
		if _, ok := model.ParseOrderStatus(status); !ok {
			return OrderListOutput{}, ValidationError("invalid status %q", status)
		}
	}

	orders, total, err := u.orders.ListByStore(ctx, repo.StoreOrderListFilter{
		StoreID: storeID,
		Status:  status,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		u.log.ErrorContext(ctx, "list store orders failed", "store_id", storeID, "err", err)
		return OrderListOutput{}, Internal()
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			u.log.ErrorContext(ctx, "list order items failed", "order_id", o.ID, "err", err)
			return OrderListOutput{}, Internal()
		}
		outs = append(outs, toOrderOutput(o, items))
	}

	return OrderListOutput{
		Orders:     outs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// 店舗の集計（今日の件数は店舗サーバーのローカル日付の0時から）
func (u *StoreOrderUsecase) Stats(ctx context.Context, storeID int64) (repo.StoreOrderStats, error) {
	if storeID <= 0 {
		return repo.StoreOrderStats{}, Unauthorized("unauthorized")
	}

	now := u.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := u.orders.StatsByStore(ctx, storeID, startOfDay)
	if err != nil {
		u.log.ErrorContext(ctx, "store stats failed", "store_id", storeID, "err", err)
		return repo.StoreOrderStats{}, Internal()
	}
	return stats, nil
}

// UpdateStatus は店舗による注文ステータス更新。
// 支払いステータスの連動も同じ条件付き更新で書き込む
func (u *StoreOrderUsecase) UpdateStatus(ctx context.Context, storeID int64, orderID int64, in UpdateOrderStatusInput) (OrderOutput, error) {
	if storeID <= 0 {
		return OrderOutput{}, Unauthorized("unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, ValidationError("invalid order id")
	}

	next, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return OrderOutput{}, ValidationError("invalid status %q", in.Status)
	}
	if in.EstimatedDeliveryMinutes != nil && *in.EstimatedDeliveryMinutes < 0 {
		return OrderOutput{}, ValidationError("estimatedDeliveryTime must be >= 0")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFound("order not found")
		}
		if err != nil {
			return u.dbError(ctx, "find order", err)
		}
		//他店舗の注文は403
		if o.StoreID != storeID {
			return Forbidden("order belongs to another store")
		}

		sameStatus := o.OrderStatus == next
		if sameStatus && in.Notes == nil && in.EstimatedDeliveryMinutes == nil {
			//何も変わらない
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return u.dbError(ctx, "list order items", err)
			}
			out = toOrderOutput(o, items)
			return nil
		}
		if !sameStatus && !o.OrderStatus.CanTransitionTo(next) {
			return PreconditionFailed(fmt.Sprintf("cannot change order status from %s to %s", o.OrderStatus, next))
		}

		payment := o.PaymentStatus
		if !sameStatus {
			payment = model.PaymentStatusAfter(next, o.PaymentMethod, o.PaymentStatus)
		}

		if err := r.Orders().ApplyTransition(ctx, orderID, repo.StatusTransition{
			From:          o.OrderStatus,
			To:            next,
			PaymentStatus: payment,
			Notes:         in.Notes,
			EstimatedMins: in.EstimatedDeliveryMinutes,
		}); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return Conflict("order was updated concurrently, please reload")
			}
			return u.dbError(ctx, "apply transition", err)
		}

		//監査ログ：「誰が」「何を」「どの対象に」「どう変えたか」
		before, _ := json.Marshal(orderStatusSnapshot{OrderStatus: o.OrderStatus, PaymentStatus: o.PaymentStatus})
		after, _ := json.Marshal(orderStatusSnapshot{
			OrderStatus:   next,
			PaymentStatus: payment,
			Notes:         in.Notes,
			EstimatedMins: in.EstimatedDeliveryMinutes,
		})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    string(model.ActorStore),
			ActorID:      storeID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    u.now(),
		}); err != nil {
			return u.dbError(ctx, "create audit log", err)
		}

		updated, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return u.dbError(ctx, "reload order", err)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return u.dbError(ctx, "list order items", err)
		}
		out = toOrderOutput(updated, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.log.InfoContext(ctx, "order status updated",
		"order_id", orderID,
		"store_id", storeID,
		"order_status", out.OrderStatus,
		"payment_status", out.PaymentStatus,
	)
	return out, nil
}

func (u *StoreOrderUsecase) dbError(ctx context.Context, op string, err error) error {
	u.log.ErrorContext(ctx, op+" failed", "err", err)
	return Internal()
}
