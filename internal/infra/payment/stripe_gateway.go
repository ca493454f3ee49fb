package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"foodorder/internal/config"
	"foodorder/internal/usecase"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway は Stripe Checkout を usecase.PaymentGateway / WebhookParser として使う
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
}

func NewStripeGateway(cfg config.PaymentConfig, log *slog.Logger) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		LeveledLogger: slogLeveledLogger{log: log},
		// リトライはしない（タイムアウトはusecase側で管理する）
		MaxNetworkRetries: stripe.Int64(0),
	})
	return newStripeGateway(cfg, backend)
}

func newStripeGateway(cfg config.PaymentConfig, backend stripe.Backend) *StripeGateway {
	sc := client.New(cfg.StripeSecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
	return &StripeGateway{sc: sc, webhookSecret: cfg.StripeWebhookSecret}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req usecase.CheckoutSessionRequest) (usecase.CheckoutSession, error) {
	params := toSessionParams(req)
	params.Context = ctx

	s, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return usecase.CheckoutSession{}, mapStripeErr(ctx, err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (usecase.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := g.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return usecase.CheckoutSession{}, mapStripeErr(ctx, err)
	}
	return fromStripeSession(s), nil
}

// ParseWebhook は Stripe-Signature を検証して checkout.session.* を取り出す
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (usecase.WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return usecase.WebhookEvent{}, fmt.Errorf("%w: %v", usecase.ErrInvalidWebhook, err)
	}

	out := usecase.WebhookEvent{ID: ev.ID, Type: usecase.WebhookEventType(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}

	switch out.Type {
	case usecase.WebhookSessionCompleted, usecase.WebhookAsyncPaymentSucceeded,
		usecase.WebhookAsyncPaymentFailed, usecase.WebhookSessionExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return usecase.WebhookEvent{}, fmt.Errorf("%w: decode session: %v", usecase.ErrInvalidWebhook, err)
		}
		out.Session = fromStripeSession(&s)
	}
	return out, nil
}

func toSessionParams(req usecase.CheckoutSessionRequest) *stripe.CheckoutSessionParams {
	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(l.UnitAmountCents),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lines,
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ClientReferenceID),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func fromStripeSession(s *stripe.CheckoutSession) usecase.CheckoutSession {
	out := usecase.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: usecase.SessionPaymentStatus(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

// Stripeのエラーを usecase のゲートウェイエラーに寄せる
func mapStripeErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", usecase.ErrGatewayTimeout, err)
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", usecase.ErrSessionNotFound, se.Msg)
		}
	}
	return fmt.Errorf("%w: %v", usecase.ErrGatewayUnavailable, err)
}

// stripe-goのログをslogに流す
type slogLeveledLogger struct {
	log *slog.Logger
}

func (l slogLeveledLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l slogLeveledLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l slogLeveledLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l slogLeveledLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
