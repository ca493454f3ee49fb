package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"foodorder/internal/domain/model"
	"foodorder/internal/infra/lock"
	"foodorder/internal/logger"
	repo "foodorder/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// =====================
// インメモリDB（usecaseテスト用）
// WithinTx は txMu で直列化して FOR UPDATE の代わりにする
// =====================

type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID int64

	foods      map[int64]model.FoodItem
	stores     map[int64]model.Store
	customers  map[int64]model.Customer
	carts      map[int64]model.Cart
	cartItems  map[int64][]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64][]model.OrderItem
	audits     []model.AuditLog

	// 注文作成でErrDuplicateを返す回数
	dupOrderCreates int
	// ApplyTransitionを強制的に競合させる
	forceConflict bool
	// SetGatewaySessionを失敗させる
	failSetSession bool
	// カートClearの呼び出し回数
	cartClears int
	txCalls    int
}

func newMemDB() *memDB {
	return &memDB{
		nextID:     100,
		foods:      map[int64]model.FoodItem{},
		stores:     map[int64]model.Store{},
		customers:  map[int64]model.Customer{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64][]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addStore(s model.Store) model.Store {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s.ID == 0 {
		s.ID = db.id()
	}
	db.stores[s.ID] = s
	return s
}

func (db *memDB) addFood(f model.FoodItem) model.FoodItem {
	db.mu.Lock()
	defer db.mu.Unlock()
	if f.ID == 0 {
		f.ID = db.id()
	}
	db.foods[f.ID] = f
	return f
}

func (db *memDB) addOrder(o model.Order, items []model.OrderItem) model.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	if o.ID == 0 {
		o.ID = db.id()
	}
	db.orders[o.ID] = o
	db.orderItems[o.ID] = items
	return o
}

func (db *memDB) order(id int64) model.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.orders[id]
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) clears() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cartClears
}

func (db *memDB) auditActions() []model.AuditAction {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]model.AuditAction, 0, len(db.audits))
	for _, a := range db.audits {
		out = append(out, a.Action)
	}
	return out
}

// TxManager
func (db *memDB) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	db.txCalls++
	db.mu.Unlock()
	return fn(memTxRepos{db: db})
}

type memTxRepos struct{ db *memDB }

func (r memTxRepos) Orders() repo.OrderRepository         { return memOrders{r.db} }
func (r memTxRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r.db} }
func (r memTxRepos) Carts() repo.CartRepository           { return memCarts{r.db} }
func (r memTxRepos) AuditLogs() repo.AuditLogRepository   { return memAudit{r.db} }

// ----- catalog -----

type memFoods struct{ db *memDB }

func (m memFoods) FindByID(ctx context.Context, id int64) (model.FoodItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	f, ok := m.db.foods[id]
	if !ok {
		return model.FoodItem{}, repo.ErrNotFound
	}
	return f, nil
}

func (m memFoods) ListByStoreID(ctx context.Context, storeID int64, onlyAvailable bool) ([]model.FoodItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.FoodItem{}
	for _, f := range m.db.foods {
		if f.StoreID == storeID && (!onlyAvailable || f.Available) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memFoods) Create(ctx context.Context, f model.FoodItem) (model.FoodItem, error) {
	return m.db.addFood(f), nil
}

func (m memFoods) UpdateAvailability(ctx context.Context, id int64, available bool) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	f, ok := m.db.foods[id]
	if !ok {
		return repo.ErrNotFound
	}
	f.Available = available
	m.db.foods[id] = f
	return nil
}

func (m memFoods) Delete(ctx context.Context, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.foods[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.db.foods, id)
	return nil
}

type memStores struct{ db *memDB }

func (m memStores) FindByID(ctx context.Context, id int64) (model.Store, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.stores[id]
	if !ok {
		return model.Store{}, repo.ErrNotFound
	}
	return s, nil
}

func (m memStores) FindByEmail(ctx context.Context, email string) (model.Store, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, s := range m.db.stores {
		if s.Email == email {
			return s, nil
		}
	}
	return model.Store{}, repo.ErrNotFound
}

func (m memStores) ListActive(ctx context.Context) ([]model.Store, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Store{}
	for _, s := range m.db.stores {
		if s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memStores) Create(ctx context.Context, s model.Store) (model.Store, error) {
	if _, err := m.FindByEmail(ctx, s.Email); err == nil {
		return model.Store{}, repo.ErrDuplicate
	}
	return m.db.addStore(s), nil
}

type memCustomers struct{ db *memDB }

func (m memCustomers) FindByID(ctx context.Context, id int64) (model.Customer, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.customers[id]
	if !ok {
		return model.Customer{}, repo.ErrNotFound
	}
	return c, nil
}

func (m memCustomers) FindByEmail(ctx context.Context, email string) (model.Customer, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return model.Customer{}, repo.ErrNotFound
}

func (m memCustomers) Create(ctx context.Context, c model.Customer) (model.Customer, error) {
	if _, err := m.FindByEmail(ctx, c.Email); err == nil {
		return model.Customer{}, repo.ErrDuplicate
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c.ID = m.db.id()
	m.db.customers[c.ID] = c
	return c, nil
}

// ----- cart -----

type memCarts struct{ db *memDB }

func (m memCarts) GetOrCreateForUpdate(ctx context.Context, customerID int64) (model.Cart, error) {
	if c, err := m.FindByCustomerID(ctx, customerID); err == nil {
		return c, nil
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c := model.Cart{ID: m.db.id(), CustomerID: customerID}
	m.db.carts[c.ID] = c
	return c, nil
}

func (m memCarts) FindByCustomerID(ctx context.Context, customerID int64) (model.Cart, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.carts {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (m memCarts) SetStore(ctx context.Context, cartID int64, storeID *int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.StoreID = storeID
	m.db.carts[cartID] = c
	return nil
}

func (m memCarts) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]model.CartItem, len(m.db.cartItems[cartID]))
	copy(out, m.db.cartItems[cartID])
	return out, nil
}

func (m memCarts) InsertItem(ctx context.Context, item model.CartItem) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, it := range m.db.cartItems[item.CartID] {
		if it.FoodID == item.FoodID {
			return repo.ErrDuplicate
		}
	}
	item.ID = m.db.id()
	m.db.cartItems[item.CartID] = append(m.db.cartItems[item.CartID], item)
	return nil
}

func (m memCarts) UpdateItemQuantity(ctx context.Context, cartID int64, foodID int64, qty int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	items := m.db.cartItems[cartID]
	for i := range items {
		if items[i].FoodID == foodID {
			items[i].Quantity = qty
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m memCarts) DeleteItem(ctx context.Context, cartID int64, foodID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	items := m.db.cartItems[cartID]
	for i := range items {
		if items[i].FoodID == foodID {
			m.db.cartItems[cartID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m memCarts) DeleteItems(ctx context.Context, cartID int64, foodIDs []int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	drop := map[int64]bool{}
	for _, id := range foodIDs {
		drop[id] = true
	}
	kept := []model.CartItem{}
	for _, it := range m.db.cartItems[cartID] {
		if !drop[it.FoodID] {
			kept = append(kept, it)
		}
	}
	m.db.cartItems[cartID] = kept
	return nil
}

func (m memCarts) Clear(ctx context.Context, cartID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.StoreID = nil
	m.db.carts[cartID] = c
	m.db.cartItems[cartID] = nil
	m.db.cartClears++
	return nil
}

// ----- orders -----

type memOrders struct{ db *memDB }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o, ok := m.db.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return m.FindByID(ctx, orderID)
}

func (m memOrders) list(match func(model.Order) bool, page int, limit int) ([]model.Order, int64) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	all := []model.Order{}
	for _, o := range m.db.orders {
		if match(o) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all))
}

func (m memOrders) ListByCustomerID(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error) {
	out, total := m.list(func(o model.Order) bool { return o.CustomerID == customerID }, page, limit)
	return out, total, nil
}

func (m memOrders) ListByStore(ctx context.Context, f repo.StoreOrderListFilter) ([]model.Order, int64, error) {
	out, total := m.list(func(o model.Order) bool {
		return o.StoreID == f.StoreID && (f.Status == "" || string(o.OrderStatus) == f.Status)
	}, f.Page, f.Limit)
	return out, total, nil
}

func (m memOrders) StatsByStore(ctx context.Context, storeID int64, since time.Time) (repo.StoreOrderStats, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var s repo.StoreOrderStats
	for _, o := range m.db.orders {
		if o.StoreID != storeID {
			continue
		}
		s.TotalOrders++
		if o.PaymentStatus == model.PaymentStatusCompleted {
			s.TotalRevenueCents += o.AmountCents
		}
		switch o.OrderStatus {
		case model.OrderStatusPending:
			s.PendingOrders++
		case model.OrderStatusDelivered:
			s.CompletedOrders++
		case model.OrderStatusCancelled:
			s.CancelledOrders++
		}
		if !o.CreatedAt.Before(since) {
			s.TodayOrders++
		}
	}
	if s.TotalOrders > 0 {
		s.AverageOrderCents = float64(s.TotalRevenueCents) / float64(s.TotalOrders)
	}
	return s, nil
}

func (m memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.dupOrderCreates > 0 {
		m.db.dupOrderCreates--
		return 0, repo.ErrDuplicate
	}
	for _, o := range m.db.orders {
		if o.OrderNumber == order.OrderNumber {
			return 0, repo.ErrDuplicate
		}
	}
	order.ID = m.db.id()
	m.db.orders[order.ID] = order
	return order.ID, nil
}

func (m memOrders) update(orderID int64, fn func(o *model.Order) bool) bool {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o, ok := m.db.orders[orderID]
	if !ok || !fn(&o) {
		return false
	}
	m.db.orders[orderID] = o
	return true
}

func (m memOrders) SetGatewaySession(ctx context.Context, orderID int64, sessionID string) error {
	if m.db.failSetSession {
		return errors.New("connection reset")
	}
	if !m.update(orderID, func(o *model.Order) bool { o.GatewaySessionID = sessionID; return true }) {
		return repo.ErrNotFound
	}
	return nil
}

func (m memOrders) MarkPaid(ctx context.Context, orderID int64, s repo.PaymentSettlement) (bool, error) {
	return m.update(orderID, func(o *model.Order) bool {
		if o.PaymentStatus != model.PaymentStatusPending && o.PaymentStatus != model.PaymentStatusFailed {
			return false
		}
		o.PaymentStatus = model.PaymentStatusCompleted
		if s.Status != "" {
			o.PaymentStatus = s.Status
		}
		o.GatewayPaymentIntentID = s.PaymentIntentID
		if o.OrderStatus == model.OrderStatusPending {
			o.OrderStatus = model.OrderStatusConfirmed
		}
		return true
	}), nil
}

func (m memOrders) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	return m.update(orderID, func(o *model.Order) bool {
		if o.PaymentStatus != model.PaymentStatusPending {
			return false
		}
		o.PaymentStatus = model.PaymentStatusFailed
		return true
	}), nil
}

func (m memOrders) ApplyTransition(ctx context.Context, orderID int64, t repo.StatusTransition) error {
	ok := m.update(orderID, func(o *model.Order) bool {
		if m.db.forceConflict || o.OrderStatus != t.From {
			return false
		}
		o.OrderStatus = t.To
		o.PaymentStatus = t.PaymentStatus
		if t.Notes != nil {
			o.StoreNotes = *t.Notes
		}
		if t.EstimatedMins != nil {
			v := *t.EstimatedMins
			o.EstimatedDeliveryMinutes = &v
		}
		return true
	})
	if !ok {
		return repo.ErrConflict
	}
	return nil
}

type memOrderItems struct{ db *memDB }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	saved := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		it.ID = m.db.id()
		it.OrderID = orderID
		saved = append(saved, it)
	}
	m.db.orderItems[orderID] = saved
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]model.OrderItem, len(m.db.orderItems[orderID]))
	copy(out, m.db.orderItems[orderID])
	return out, nil
}

type memAudit struct{ db *memDB }

func (m memAudit) Create(ctx context.Context, log model.AuditLog) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.audits = append(m.db.audits, log)
	return nil
}

func (m memAudit) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]model.AuditLog, len(m.db.audits))
	copy(out, m.db.audits)
	return out, nil
}

// =====================
// Gateway mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(CheckoutSession)
	return s, args.Error(1)
}

func (m *GatewayMock) RetrieveSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(CheckoutSession)
	return s, args.Error(1)
}

type WebhookParserMock struct{ mock.Mock }

func (m *WebhookParserMock) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(WebhookEvent)
	return ev, args.Error(1)
}

// =====================
// Helpers
// =====================

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	he, ok := AsHTTPError(err)
	if assert.True(t, ok, "err=%v is not HTTPError", err) {
		assert.Equal(t, want, he.Kind, "err=%q", he.Message)
	}
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), wantSubstr)
	}
}

// テスト用の組み立て。時刻は固定する

func newTestCartUsecase(db *memDB) *CartUsecase {
	u := NewCartUsecase(db, memFoods{db}, logger.Discard())
	u.now = func() time.Time { return fixedNow }
	return u
}

func newTestOrderUsecase(db *memDB, gw PaymentGateway) *OrderUsecase {
	u := NewOrderUsecase(
		db,
		memFoods{db},
		memStores{db},
		memOrders{db},
		memOrderItems{db},
		Pricing{DeliveryFeeCents: 500, TaxRateBps: 1000},
		NewGatewayAdapter(gw, time.Second),
		CheckoutBuilder{Currency: "usd", FrontendURL: "http://localhost:5174"},
		logger.Discard(),
	)
	u.now = func() time.Time { return fixedNow }
	return u
}

func newTestPaymentUsecase(db *memDB, gw PaymentGateway, wh WebhookParser) *PaymentUsecase {
	u := NewPaymentUsecase(
		db,
		memOrders{db},
		NewGatewayAdapter(gw, time.Second),
		wh,
		lock.NewMemoryLocker(),
		time.Second,
		logger.Discard(),
	)
	u.now = func() time.Time { return fixedNow }
	return u
}

func newTestStoreOrderUsecase(db *memDB) *StoreOrderUsecase {
	u := NewStoreOrderUsecase(db, memOrders{db}, memOrderItems{db}, logger.Discard())
	u.now = func() time.Time { return fixedNow }
	return u
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
