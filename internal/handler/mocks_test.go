package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"foodorder/internal/config"
	"foodorder/internal/domain/model"
	"foodorder/internal/logger"
	"foodorder/internal/repository"
	"foodorder/internal/usecase"
	"foodorder/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret"

var testCfg = config.Config{JWTSecret: testSecret, FEURL: "http://localhost:5174"}

// =====================
// Repository mocks
// =====================

type FoodRepoMock struct{ mock.Mock }

func (m *FoodRepoMock) FindByID(ctx context.Context, id int64) (model.FoodItem, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(model.FoodItem)
	return f, args.Error(1)
}

func (m *FoodRepoMock) ListByStoreID(ctx context.Context, storeID int64, onlyAvailable bool) ([]model.FoodItem, error) {
	args := m.Called(ctx, storeID, onlyAvailable)
	fs, _ := args.Get(0).([]model.FoodItem)
	return fs, args.Error(1)
}

func (m *FoodRepoMock) Create(ctx context.Context, f model.FoodItem) (model.FoodItem, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).(model.FoodItem)
	return out, args.Error(1)
}

func (m *FoodRepoMock) UpdateAvailability(ctx context.Context, id int64, available bool) error {
	return m.Called(ctx, id, available).Error(0)
}

func (m *FoodRepoMock) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type StoreRepoMock struct{ mock.Mock }

func (m *StoreRepoMock) FindByID(ctx context.Context, id int64) (model.Store, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(model.Store)
	return s, args.Error(1)
}

func (m *StoreRepoMock) FindByEmail(ctx context.Context, email string) (model.Store, error) {
	args := m.Called(ctx, email)
	s, _ := args.Get(0).(model.Store)
	return s, args.Error(1)
}

func (m *StoreRepoMock) ListActive(ctx context.Context) ([]model.Store, error) {
	args := m.Called(ctx)
	ss, _ := args.Get(0).([]model.Store)
	return ss, args.Error(1)
}

func (m *StoreRepoMock) Create(ctx context.Context, s model.Store) (model.Store, error) {
	panic("not used in handler tests")
}

type CustomerRepoMock struct{ mock.Mock }

func (m *CustomerRepoMock) FindByID(ctx context.Context, id int64) (model.Customer, error) {
	panic("not used in handler tests")
}

func (m *CustomerRepoMock) FindByEmail(ctx context.Context, email string) (model.Customer, error) {
	args := m.Called(ctx, email)
	c, _ := args.Get(0).(model.Customer)
	return c, args.Error(1)
}

func (m *CustomerRepoMock) Create(ctx context.Context, c model.Customer) (model.Customer, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).(model.Customer)
	return out, args.Error(1)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByCustomerID(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error) {
	panic("not used in handler tests")
}

func (m *OrderRepoMock) ListByStore(ctx context.Context, f repository.StoreOrderListFilter) ([]model.Order, int64, error) {
	panic("not used in handler tests")
}

func (m *OrderRepoMock) StatsByStore(ctx context.Context, storeID int64, since time.Time) (repository.StoreOrderStats, error) {
	args := m.Called(ctx, storeID, since)
	s, _ := args.Get(0).(repository.StoreOrderStats)
	return s, args.Error(1)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	panic("not used in handler tests")
}

func (m *OrderRepoMock) SetGatewaySession(ctx context.Context, orderID int64, sessionID string) error {
	panic("not used in handler tests")
}

func (m *OrderRepoMock) MarkPaid(ctx context.Context, orderID int64, s repository.PaymentSettlement) (bool, error) {
	args := m.Called(ctx, orderID, s)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ApplyTransition(ctx context.Context, orderID int64, t repository.StatusTransition) error {
	panic("not used in handler tests")
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repository.AuditLogFilter) ([]model.AuditLog, error) {
	panic("not used in handler tests")
}

// Txの中でも同じモックを返す
type txStub struct {
	orders *OrderRepoMock
	audits *AuditRepoMock
}

func (s txStub) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	return fn(s)
}

func (s txStub) Orders() repository.OrderRepository         { return s.orders }
func (s txStub) OrderItems() repository.OrderItemRepository { panic("not used in handler tests") }
func (s txStub) Carts() repository.CartRepository           { panic("not used in handler tests") }
func (s txStub) AuditLogs() repository.AuditLogRepository   { return s.audits }

// =====================
// Gateway mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateSession(ctx context.Context, req usecase.CheckoutSessionRequest) (usecase.CheckoutSession, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(usecase.CheckoutSession)
	return s, args.Error(1)
}

func (m *GatewayMock) RetrieveSession(ctx context.Context, sessionID string) (usecase.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(usecase.CheckoutSession)
	return s, args.Error(1)
}

type WebhookParserMock struct{ mock.Mock }

func (m *WebhookParserMock) ParseWebhook(payload []byte, signature string) (usecase.WebhookEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(usecase.WebhookEvent)
	return ev, args.Error(1)
}

type AccountValidatorMock struct{ mock.Mock }

func (m *AccountValidatorMock) ValidateRegister(ctx context.Context, actor model.ActorType, in usecase.RegisterInput) error {
	return m.Called(ctx, actor, in).Error(0)
}

func (m *AccountValidatorMock) ValidateLogin(ctx context.Context, email string, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

// =====================
// Helpers
// =====================

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.NewRequestValidator()
	return e
}

func tokenFor(t *testing.T, actor model.ActorType, id int64) string {
	t.Helper()
	now := time.Now()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatInt(id, 10),
		"actor": string(actor),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// JSONリクエストを投げる（tokenが空なら認証なし）
func doJSON(t *testing.T, e *echo.Echo, method string, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var res ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

var testLog = logger.Discard()
