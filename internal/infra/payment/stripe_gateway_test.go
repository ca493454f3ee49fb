package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"foodorder/internal/config"
	"foodorder/internal/logger"
	"foodorder/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

func newTestGateway(t *testing.T, h http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		LeveledLogger:     slogLeveledLogger{log: logger.Discard()},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return newStripeGateway(config.PaymentConfig{
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: testWebhookSecret,
	}, backend)
}

func TestStripeGateway_CreateSession(t *testing.T) {
	var form url.Values
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_test_1","status":"open","payment_status":"unpaid","metadata":{"order_id":"42"}}`)
	})

	s, err := g.CreateSession(context.Background(), usecase.CheckoutSessionRequest{
		Currency: "usd",
		Lines: []usecase.CheckoutLine{
			{Name: "Pizza", UnitAmountCents: 1000, Quantity: 2},
			{Name: "Delivery Fee", UnitAmountCents: 500, Quantity: 1},
		},
		Metadata:          map[string]string{"order_id": "42"},
		ClientReferenceID: "42",
		SuccessURL:        "http://fe/verify?success=true",
		CancelURL:         "http://fe/verify?success=false",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", s.URL)
	assert.Equal(t, usecase.SessionUnpaid, s.PaymentStatus)
	assert.Equal(t, "42", s.Metadata["order_id"])

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "Pizza", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "1000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "2", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "usd", form.Get("line_items[1][price_data][currency]"))
	assert.Equal(t, "42", form.Get("metadata[order_id]"))
	assert.Equal(t, "42", form.Get("client_reference_id"))
}

func TestStripeGateway_RetrieveSession_Paid(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cs_test_1","object":"checkout.session","status":"complete","payment_status":"paid","payment_intent":{"id":"pi_1","object":"payment_intent"},"metadata":{"order_id":"42"}}`)
	})

	s, err := g.RetrieveSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, usecase.SessionPaid, s.PaymentStatus)
	assert.Equal(t, "complete", s.Status)
	assert.Equal(t, "pi_1", s.PaymentIntentID)
}

func TestStripeGateway_RetrieveSession_Missing(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session: 'cs_x'"}}`)
	})

	_, err := g.RetrieveSession(context.Background(), "cs_x")
	assert.ErrorIs(t, err, usecase.ErrSessionNotFound)
}

func TestStripeGateway_ServerErrorIsUnavailable(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"type":"api_error","message":"boom"}}`)
	})

	_, err := g.RetrieveSession(context.Background(), "cs_x")
	assert.ErrorIs(t, err, usecase.ErrGatewayUnavailable)
}

func TestMapStripeErr_Deadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := mapStripeErr(ctx, errors.New("net/http: request canceled"))
	assert.ErrorIs(t, err, usecase.ErrGatewayTimeout)
}

func signed(t *testing.T, payload string) string {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Header
}

func TestStripeGateway_ParseWebhook(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","payment_intent":"pi_9","metadata":{"order_id":"42"}}}}`

	ev, err := g.ParseWebhook([]byte(payload), signed(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, usecase.WebhookSessionCompleted, ev.Type)
	assert.Equal(t, "cs_test_1", ev.Session.ID)
	assert.Equal(t, usecase.SessionPaid, ev.Session.PaymentStatus)
	assert.Equal(t, "pi_9", ev.Session.PaymentIntentID)
	assert.Equal(t, "42", ev.Session.Metadata["order_id"])
}

func TestStripeGateway_ParseWebhook_BadSignature(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`

	_, err := g.ParseWebhook([]byte(payload), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, usecase.ErrInvalidWebhook)
}

func TestStripeGateway_ParseWebhook_OtherEventType(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := `{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`

	ev, err := g.ParseWebhook([]byte(payload), signed(t, payload))
	require.NoError(t, err)
	assert.Equal(t, usecase.WebhookEventType("customer.created"), ev.Type)
	assert.Empty(t, ev.Session.ID)
}
