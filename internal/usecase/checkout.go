package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"foodorder/internal/domain/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ゲートウェイが時間内に応答しなかった
	ErrGatewayTimeout = errors.New("payment gateway timeout")
	// ゲートウェイに繋がらない・5xx
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// セッションが存在しない・期限切れ
	ErrSessionNotFound = errors.New("payment session not found")
	// webhookの署名が不正
	ErrInvalidWebhook = errors.New("invalid webhook")
)

// セッションの支払い状態（ゲートウェイ側の値）
type SessionPaymentStatus string

const (
	SessionPaid              SessionPaymentStatus = "paid"
	SessionUnpaid            SessionPaymentStatus = "unpaid"
	SessionNoPaymentRequired SessionPaymentStatus = "no_payment_required"
)

type CheckoutLine struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

type CheckoutSessionRequest struct {
	Currency          string
	Lines             []CheckoutLine
	Metadata          map[string]string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
}

type CheckoutSession struct {
	ID              string
	URL             string
	Status          string // open / complete / expired
	PaymentStatus   SessionPaymentStatus
	PaymentIntentID string
	Metadata        map[string]string
}

// 決済ゲートウェイ。起動時に1回だけ作って注入する
type PaymentGateway interface {
	CreateSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (CheckoutSession, error)
}

// webhookの種類
type WebhookEventType string

const (
	WebhookSessionCompleted      WebhookEventType = "checkout.session.completed"
	WebhookAsyncPaymentSucceeded WebhookEventType = "checkout.session.async_payment_succeeded"
	WebhookAsyncPaymentFailed    WebhookEventType = "checkout.session.async_payment_failed"
	WebhookSessionExpired        WebhookEventType = "checkout.session.expired"
)

type WebhookEvent struct {
	ID      string
	Type    WebhookEventType
	Session CheckoutSession
}

// 署名を検証してイベントを取り出す
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// CheckoutBuilder は注文からチェックアウトセッションの内容を作る
type CheckoutBuilder struct {
	Currency    string
	FrontendURL string
}

func (b CheckoutBuilder) Build(o model.Order, items []model.OrderItem) CheckoutSessionRequest {
	lines := make([]CheckoutLine, 0, len(items)+2)
	for _, it := range items {
		lines = append(lines, CheckoutLine{
			Name:            it.Name,
			UnitAmountCents: it.UnitPriceCents,
			Quantity:        it.Quantity,
		})
	}
	lines = append(lines, CheckoutLine{
		Name:            "Delivery Fee",
		UnitAmountCents: o.DeliveryFeeCents,
		Quantity:        1,
	})
	if o.TaxCents > 0 {
		lines = append(lines, CheckoutLine{
			Name:            "Tax",
			UnitAmountCents: o.TaxCents,
			Quantity:        1,
		})
	}

	orderID := strconv.FormatInt(o.ID, 10)
	base := strings.TrimRight(b.FrontendURL, "/")

	// {CHECKOUT_SESSION_ID} はゲートウェイ側で置換されるのでエスケープしない
	success := fmt.Sprintf("%s/verify?success=true&orderId=%s&session_id={CHECKOUT_SESSION_ID}", base, url.QueryEscape(orderID))
	cancel := fmt.Sprintf("%s/verify?success=false&orderId=%s", base, url.QueryEscape(orderID))

	return CheckoutSessionRequest{
		Currency: b.Currency,
		Lines:    lines,
		Metadata: map[string]string{
			"order_id":       orderID,
			"customer_id":    strconv.FormatInt(o.CustomerID, 10),
			"store_id":       strconv.FormatInt(o.StoreID, 10),
			"payment_method": string(o.PaymentMethod),
		},
		ClientReferenceID: orderID,
		SuccessURL:        success,
		CancelURL:         cancel,
	}
}

// GatewayAdapter はゲートウェイ呼び出しにタイムアウトとspanを付ける
type GatewayAdapter struct {
	gw      PaymentGateway
	timeout time.Duration
}

func NewGatewayAdapter(gw PaymentGateway, timeout time.Duration) *GatewayAdapter {
	return &GatewayAdapter{gw: gw, timeout: timeout}
}

func (a *GatewayAdapter) CreateSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	ctx, span := otel.Tracer("foodorder").Start(ctx, "payment.create_session")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", req.ClientReferenceID))

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	s, err := a.gw.CreateSession(ctx, req)
	if err != nil {
		err = classifyGatewayErr(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CheckoutSession{}, err
	}
	return s, nil
}

func (a *GatewayAdapter) RetrieveSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	ctx, span := otel.Tracer("foodorder").Start(ctx, "payment.retrieve_session")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	s, err := a.gw.RetrieveSession(ctx, sessionID)
	if err != nil {
		err = classifyGatewayErr(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CheckoutSession{}, err
	}
	span.SetAttributes(attribute.String("payment.status", string(s.PaymentStatus)))
	return s, nil
}

// 期限切れはタイムアウト、分類済みのものはそのまま、それ以外は繋がらない扱い
func classifyGatewayErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrGatewayTimeout), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrGatewayUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}

// ゲートウェイエラーを利用者向けのエラーにする
func gatewayHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrGatewayTimeout):
		return GatewayTimeout("payment gateway timed out, please retry")
	case errors.Is(err, ErrSessionNotFound):
		return GatewayError("payment session not found or expired")
	default:
		return GatewayError("payment gateway unavailable, please retry")
	}
}
