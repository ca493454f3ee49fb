package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	minVerifyLockTTL = 30 * time.Second
	// ゲートウェイ呼び出しの後のDB処理の分
	verifyLockMargin = 10 * time.Second
)

// VerifyLockTTL は決済確認ロックの保持時間。
// ゲートウェイのタイムアウトより短いと、呼び出し中にロックが切れて二重に確認が走る
func VerifyLockTTL(gatewayTimeout time.Duration) time.Duration {
	ttl := gatewayTimeout + verifyLockMargin
	if ttl < minVerifyLockTTL {
		return minVerifyLockTTL
	}
	return ttl
}

// 注文単位のロック（Redis または プロセス内）
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error)
}

type PaymentUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	gateway  *GatewayAdapter
	webhooks WebhookParser
	locker   Locker
	lockTTL  time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	gateway *GatewayAdapter,
	webhooks WebhookParser,
	locker Locker,
	lockTTL time.Duration,
	log *slog.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		orders:   orders,
		gateway:  gateway,
		webhooks: webhooks,
		locker:   locker,
		lockTTL:  lockTTL,
		log:      log,
		now:      time.Now,
	}
}

// 決済確認の結果
type VerifyResult string

const (
	// 今回の呼び出しで確定した
	VerifyPaid VerifyResult = "paid"
	// 既に確定済み（何もしていない）
	VerifyAlreadyPaid VerifyResult = "already_paid"
	// 未払い・期限切れ・キャンセル
	VerifyDeclined VerifyResult = "declined"
	// 取消済みの注文に入金があった（返金待ち）
	VerifyRefundRequired VerifyResult = "refund_required"
)

type VerifyPaymentInput struct {
	OrderID   int64
	SessionID string
}

type VerifyPaymentOutput struct {
	Result        VerifyResult `json:"result"`
	OrderID       int64        `json:"order_id"`
	OrderNumber   string       `json:"order_number"`
	PaymentStatus string       `json:"payment_status"`
	OrderStatus   string       `json:"order_status"`
	AmountCents   int64        `json:"amount_cents"`
}

// VerifyPayment はゲートウェイから戻ってきた顧客の決済を確認して確定する。
// 確定済みなら何もせず同じ結果を返す
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, customerID int64, in VerifyPaymentInput) (VerifyPaymentOutput, error) {
	if customerID <= 0 {
		return VerifyPaymentOutput{}, Unauthorized("unauthorized")
	}
	if in.OrderID <= 0 {
		return VerifyPaymentOutput{}, ValidationError("orderId is required")
	}

	ctx, span := otel.Tracer("foodorder").Start(ctx, "payment.verify")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", in.OrderID))

	o, err := u.findOwnedOrder(ctx, customerID, in.OrderID)
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	if o.PaymentStatus.Settled() {
		return toVerifyOutput(settledResult(o), o), nil
	}

	//同じ注文の確認が同時に走らないようにする
	lockCtx, cancel := context.WithTimeout(ctx, u.lockTTL)
	release, err := u.locker.Acquire(lockCtx, lockKey(o.ID), u.lockTTL)
	cancel()
	if err != nil {
		u.log.WarnContext(ctx, "payment verification lock not acquired", "order_id", o.ID, "err", err)
		return VerifyPaymentOutput{}, Conflict("payment verification already in progress")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			u.log.WarnContext(ctx, "release lock failed", "order_id", o.ID, "err", err)
		}
	}()

	//ロック待ちの間に他で確定しているかもしれない
	o, err = u.findOwnedOrder(ctx, customerID, in.OrderID)
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	if o.PaymentStatus.Settled() {
		return toVerifyOutput(settledResult(o), o), nil
	}
	if !o.PaymentMethod.IsOnline() {
		return VerifyPaymentOutput{}, PreconditionFailed("order is not an online payment")
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = o.GatewaySessionID
	}
	if sessionID == "" {
		return VerifyPaymentOutput{}, ValidationError("sessionId is required")
	}
	if o.GatewaySessionID != "" && sessionID != o.GatewaySessionID {
		return VerifyPaymentOutput{}, Forbidden("session does not belong to this order")
	}

	session, err := u.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		u.log.ErrorContext(ctx, "retrieve payment session failed", "order_id", o.ID, "err", err)
		//存在しない・期限切れのセッションはfailedにする。タイムアウトは再試行できるよう触らない
		if errors.Is(err, ErrSessionNotFound) {
			if _, fErr := u.markFailed(ctx, o, model.AuditActorSystem, 0); fErr != nil {
				return VerifyPaymentOutput{}, fErr
			}
		}
		return VerifyPaymentOutput{}, gatewayHTTPError(err)
	}
	if ref := session.Metadata["order_id"]; ref != "" && ref != strconv.FormatInt(o.ID, 10) {
		return VerifyPaymentOutput{}, Forbidden("session does not belong to this order")
	}

	if session.PaymentStatus == SessionPaid {
		return u.settle(ctx, o, session, string(model.ActorCustomer), customerID)
	}

	//未払い：failedにする。注文はpendingのまま、カートも残す（再試行できる）
	o, err = u.markFailed(ctx, o, string(model.ActorCustomer), customerID)
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	return toVerifyOutput(VerifyDeclined, o), nil
}

// HandleWebhook はゲートウェイからの通知を確定/失敗処理に流す。
// 同じイベントが何度来ても結果は同じ
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := u.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		u.log.WarnContext(ctx, "invalid webhook", "err", err)
		return ValidationError("invalid webhook signature")
	}

	ctx, span := otel.Tracer("foodorder").Start(ctx, "payment.webhook")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.type", string(ev.Type)))

	switch ev.Type {
	case WebhookSessionCompleted, WebhookAsyncPaymentSucceeded,
		WebhookSessionExpired, WebhookAsyncPaymentFailed:
	default:
		u.log.DebugContext(ctx, "webhook ignored", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	o, err := u.orderForSession(ctx, ev.Session)
	if err != nil {
		return err
	}
	if o.ID == 0 {
		//知らない注文は受け取ったことにする（再送させない）
		u.log.WarnContext(ctx, "webhook for unknown order", "event_id", ev.ID, "session_id", ev.Session.ID)
		return nil
	}

	switch ev.Type {
	case WebhookSessionCompleted, WebhookAsyncPaymentSucceeded:
		//非同期決済はcompletedの時点ではまだunpaid
		if ev.Session.PaymentStatus != SessionPaid {
			return nil
		}
		_, err = u.settle(ctx, o, ev.Session, model.AuditActorSystem, 0)
	default:
		_, err = u.markFailed(ctx, o, model.AuditActorSystem, 0)
	}
	return err
}

func (u *PaymentUsecase) orderForSession(ctx context.Context, s CheckoutSession) (model.Order, error) {
	orderID, err := strconv.ParseInt(s.Metadata["order_id"], 10, 64)
	if err != nil || orderID <= 0 {
		return model.Order{}, nil
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, nil
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find order failed", "order_id", orderID, "err", err)
		return model.Order{}, Internal()
	}
	if o.GatewaySessionID != "" && o.GatewaySessionID != s.ID {
		return model.Order{}, nil
	}
	return o, nil
}

// 支払い確定。条件付き更新で勝った呼び出しだけがカートを空にする。
// 店舗が先に取消していた注文はrefundedにして返金待ちとして残す（カートは触らない）
func (u *PaymentUsecase) settle(ctx context.Context, o model.Order, s CheckoutSession, actorType string, actorID int64) (VerifyPaymentOutput, error) {
	var (
		updated   bool
		cancelled bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//店舗側の取消と同時に走らないよう行ロックしてから決める
		cur, err := r.Orders().FindByIDForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		cancelled = cur.OrderStatus == model.OrderStatusCancelled

		status, action := model.PaymentStatusCompleted, model.AuditActionPaymentSettled
		if cancelled {
			status, action = model.PaymentStatusRefunded, model.AuditActionPaymentRefundRequired
		}
		ok, err := r.Orders().MarkPaid(ctx, o.ID, repo.PaymentSettlement{
			PaymentIntentID: s.PaymentIntentID,
			SettledAt:       u.now(),
			Status:          status,
		})
		if err != nil {
			return err
		}
		updated = ok
		if !ok {
			return nil
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    actorType,
			ActorID:      actorID,
			Action:       action,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   fmt.Sprintf(`{"payment_status":%q,"order_status":%q}`, cur.PaymentStatus, cur.OrderStatus),
			AfterJSON:    fmt.Sprintf(`{"payment_status":%q,"payment_intent_id":%q}`, status, s.PaymentIntentID),
			CreatedAt:    u.now(),
		})
	})
	if err != nil {
		u.log.ErrorContext(ctx, "settle payment failed", "order_id", o.ID, "err", err)
		return VerifyPaymentOutput{}, Internal()
	}

	var result VerifyResult
	switch {
	case updated && cancelled:
		result = VerifyRefundRequired
		u.log.WarnContext(ctx, "payment received for cancelled order, refund required",
			"order_id", o.ID,
			"payment_intent_id", s.PaymentIntentID,
		)
	case updated:
		result = VerifyPaid
		u.log.InfoContext(ctx, "payment settled", "order_id", o.ID, "payment_intent_id", s.PaymentIntentID)

		//カートが消せなくても支払いの確定は取り消さない
		if err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return clearCustomerCart(ctx, r, o.CustomerID)
		}); err != nil {
			u.log.ErrorContext(ctx, "clear cart after payment failed", "order_id", o.ID, "customer_id", o.CustomerID, "err", err)
		}
	}

	fresh, err := u.orders.FindByID(ctx, o.ID)
	if err != nil {
		u.log.ErrorContext(ctx, "reload order failed", "order_id", o.ID, "err", err)
		return VerifyPaymentOutput{}, Internal()
	}
	if !updated {
		result = settledResult(fresh)
	}
	return toVerifyOutput(result, fresh), nil
}

// 既に処理済みの注文の結果
func settledResult(o model.Order) VerifyResult {
	if o.PaymentStatus == model.PaymentStatusRefunded {
		return VerifyRefundRequired
	}
	return VerifyAlreadyPaid
}

// 支払い失敗。pendingのときだけ書き込む
func (u *PaymentUsecase) markFailed(ctx context.Context, o model.Order, actorType string, actorID int64) (model.Order, error) {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().MarkPaymentFailed(ctx, o.ID)
		if err != nil || !ok {
			return err
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    actorType,
			ActorID:      actorID,
			Action:       model.AuditActionPaymentFailed,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   fmt.Sprintf(`{"payment_status":%q}`, o.PaymentStatus),
			AfterJSON:    fmt.Sprintf(`{"payment_status":%q}`, model.PaymentStatusFailed),
			CreatedAt:    u.now(),
		})
	})
	if err != nil {
		u.log.ErrorContext(ctx, "mark payment failed failed", "order_id", o.ID, "err", err)
		return model.Order{}, Internal()
	}

	fresh, err := u.orders.FindByID(ctx, o.ID)
	if err != nil {
		u.log.ErrorContext(ctx, "reload order failed", "order_id", o.ID, "err", err)
		return model.Order{}, Internal()
	}
	return fresh, nil
}

func (u *PaymentUsecase) findOwnedOrder(ctx context.Context, customerID int64, orderID int64) (model.Order, error) {
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NotFound("order not found")
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find order failed", "order_id", orderID, "err", err)
		return model.Order{}, Internal()
	}
	//他人の注文は「存在しない扱い」
	if o.CustomerID != customerID {
		return model.Order{}, NotFound("order not found")
	}
	return o, nil
}

func lockKey(orderID int64) string {
	return "order:" + strconv.FormatInt(orderID, 10) + ":verify"
}

func toVerifyOutput(result VerifyResult, o model.Order) VerifyPaymentOutput {
	return VerifyPaymentOutput{
		Result:        result,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		PaymentStatus: string(o.PaymentStatus),
		OrderStatus:   string(o.OrderStatus),
		AmountCents:   o.AmountCents,
	}
}
