package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"
)

type OrderUsecase struct {
	tx         repo.TransactionManager
	foods      repo.FoodRepository
	stores     repo.StoreRepository
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	pricing    Pricing
	gateway    *GatewayAdapter
	checkout   CheckoutBuilder
	log        *slog.Logger

	now            func() time.Time
	newOrderNumber func(time.Time) string
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	foods repo.FoodRepository,
	stores repo.StoreRepository,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	pricing Pricing,
	gateway *GatewayAdapter,
	checkout CheckoutBuilder,
	log *slog.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:             tx,
		foods:          foods,
		stores:         stores,
		orders:         orders,
		orderItems:     orderItems,
		pricing:        pricing,
		gateway:        gateway,
		checkout:       checkout,
		log:            log,
		now:            time.Now,
		newOrderNumber: newOrderNumber,
	}
}

type PlaceOrderItemInput struct {
	FoodID     int64
	Name       string
	PriceCents int64
	Quantity   int64
	Image      string
}

type AddressInput struct {
	Name    string
	Street  string
	City    string
	State   string
	ZipCode string
	Phone   string
}

type PlaceOrderInput struct {
	Items         []PlaceOrderItemInput
	Address       AddressInput
	PaymentMethod string
	// クライアントが計算した合計。保存はしない（サーバー計算が正）
	ClientAmountCents *int64
}

type OrderItemOutput struct {
	FoodID         int64  `json:"food_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int64  `json:"quantity"`
	Image          string `json:"image"`
}

type OrderOutput struct {
	ID                       int64                 `json:"id"`
	OrderNumber              string                `json:"order_number"`
	CustomerID               int64                 `json:"customer_id"`
	StoreID                  int64                 `json:"store_id"`
	Items                    []OrderItemOutput     `json:"items"`
	Address                  model.DeliveryAddress `json:"address"`
	SubtotalCents            int64                 `json:"subtotal_cents"`
	DeliveryFeeCents         int64                 `json:"delivery_fee_cents"`
	TaxCents                 int64                 `json:"tax_cents"`
	AmountCents              int64                 `json:"amount_cents"`
	PaymentMethod            string                `json:"payment_method"`
	PaymentStatus            string                `json:"payment_status"`
	OrderStatus              string                `json:"order_status"`
	StoreNotes               string                `json:"store_notes,omitempty"`
	EstimatedDeliveryMinutes *int                  `json:"estimated_delivery_minutes,omitempty"`
	CreatedAt                time.Time             `json:"created_at"`
	UpdatedAt                time.Time             `json:"updated_at"`
}

type PlaceOrderOutput struct {
	Order OrderOutput `json:"order"`
	// オンライン決済のときだけ
	PaymentURL string `json:"payment_url,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

type OrderListOutput struct {
	Orders     []OrderOutput `json:"orders"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int64         `json:"total_pages"`
}

// PlaceOrder は注文を作る。
// cashはカートも同じトランザクションで空にする。card/upiは決済URLを返し、カートは決済確定まで残す
func (u *OrderUsecase) PlaceOrder(ctx context.Context, customerID int64, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if customerID <= 0 {
		return PlaceOrderOutput{}, Unauthorized("unauthorized")
	}
	if err := validatePlaceOrder(in); err != nil {
		return PlaceOrderOutput{}, err
	}
	method := model.PaymentMethod(strings.ToLower(strings.TrimSpace(in.PaymentMethod)))

	//商品をカタログから引き直す（全明細が同じ店舗であること）
	now := u.now()
	storeID, items, err := u.resolveItems(ctx, in.Items, now)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	store, err := u.stores.FindByID(ctx, storeID)
	if errors.Is(err, repo.ErrNotFound) {
		return PlaceOrderOutput{}, NotFound("store not found")
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find store failed", "store_id", storeID, "err", err)
		return PlaceOrderOutput{}, Internal()
	}
	if !store.IsActive {
		return PlaceOrderOutput{}, PreconditionFailed("store is not accepting orders")
	}

	//金額はカタログ価格からサーバーで計算する
	lines := make([]PriceLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, PriceLine{UnitPriceCents: it.UnitPriceCents, Quantity: it.Quantity})
	}
	quote := u.pricing.Quote(lines)
	if in.ClientAmountCents != nil && absInt64(*in.ClientAmountCents-quote.TotalCents) > 1 {
		u.log.WarnContext(ctx, "client amount differs from computed total",
			"customer_id", customerID,
			"client_amount_cents", *in.ClientAmountCents,
			"computed_amount_cents", quote.TotalCents,
		)
	}

	order := model.Order{
		CustomerID: customerID,
		StoreID:    storeID,
		Address: model.DeliveryAddress{
			Name:    strings.TrimSpace(in.Address.Name),
			Street:  strings.TrimSpace(in.Address.Street),
			City:    strings.TrimSpace(in.Address.City),
			State:   strings.TrimSpace(in.Address.State),
			ZipCode: strings.TrimSpace(in.Address.ZipCode),
			Phone:   strings.TrimSpace(in.Address.Phone),
		},
		SubtotalCents:    quote.SubtotalCents,
		DeliveryFeeCents: quote.DeliveryFeeCents,
		TaxCents:         quote.TaxCents,
		AmountCents:      quote.TotalCents,
		PaymentMethod:    method,
		PaymentStatus:    model.PaymentStatusPending,
		OrderStatus:      model.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	order, err = u.persist(ctx, order, items)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	u.log.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"store_id", order.StoreID,
		"payment_method", order.PaymentMethod,
		"amount_cents", order.AmountCents,
	)

	out := PlaceOrderOutput{Order: toOrderOutput(order, items)}
	if !method.IsOnline() {
		return out, nil
	}

	//決済セッション作成。失敗したら注文は残してfailedにする
	session, err := u.gateway.CreateSession(ctx, u.checkout.Build(order, items))
	if err != nil {
		u.log.ErrorContext(ctx, "create payment session failed", "order_id", order.ID, "err", err)
		u.abandonPayment(ctx, order.ID)
		return PlaceOrderOutput{}, gatewayHTTPError(err)
	}

	//セッションIDが保存できなければこの決済は失敗扱い
	if err := u.orders.SetGatewaySession(ctx, order.ID, session.ID); err != nil {
		u.log.ErrorContext(ctx, "save payment session failed", "order_id", order.ID, "session_id", session.ID, "err", err)
		u.abandonPayment(ctx, order.ID)
		return PlaceOrderOutput{}, Internal()
	}

	out.PaymentURL = session.URL
	out.SessionID = session.ID
	return out, nil
}

// 決済を始められなかった注文をfailedにする（注文自体は残す）
func (u *OrderUsecase) abandonPayment(ctx context.Context, orderID int64) {
	if _, err := u.orders.MarkPaymentFailed(context.WithoutCancel(ctx), orderID); err != nil {
		u.log.ErrorContext(ctx, "mark payment failed failed", "order_id", orderID, "err", err)
	}
}

// 注文と明細を保存。注文番号がぶつかったらトランザクションごとやり直す
func (u *OrderUsecase) persist(ctx context.Context, order model.Order, items []model.OrderItem) (model.Order, error) {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = u.newOrderNumber(u.now())

		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			id, err := r.Orders().Create(ctx, order)
			if err != nil {
				return err
			}
			order.ID = id

			if err := r.OrderItems().CreateBulk(ctx, id, items); err != nil {
				return err
			}

			//cashはこの時点で確定なのでカートを空にする
			if order.PaymentMethod == model.PaymentMethodCash {
				if err := clearCustomerCart(ctx, r, order.CustomerID); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return order, nil
		}
		if errors.Is(err, repo.ErrDuplicate) {
			u.log.WarnContext(ctx, "order number collision, retrying", "order_number", order.OrderNumber, "attempt", attempt)
			continue
		}

		u.log.ErrorContext(ctx, "persist order failed", "err", err)
		return model.Order{}, Internal()
	}

	u.log.ErrorContext(ctx, "could not generate unique order number", "attempts", maxOrderNumberAttempts)
	return model.Order{}, Internal()
}

// resolveItems は明細をカタログと突き合わせ、注文時点のスナップショットを作る。
// 名前・価格・画像はカタログの値を使い、クライアントの価格が違えば弾く
func (u *OrderUsecase) resolveItems(ctx context.Context, in []PlaceOrderItemInput, now time.Time) (int64, []model.OrderItem, error) {
	var storeID int64
	items := make([]model.OrderItem, 0, len(in))
	for i, it := range in {
		f, err := u.foods.FindByID(ctx, it.FoodID)
		if errors.Is(err, repo.ErrNotFound) {
			return 0, nil, NotFound(fmt.Sprintf("food item %d not found", it.FoodID))
		}
		if err != nil {
			u.log.ErrorContext(ctx, "find food failed", "food_id", it.FoodID, "err", err)
			return 0, nil, Internal()
		}
		if !f.Available {
			return 0, nil, PreconditionFailed(fmt.Sprintf("food item %d is not available", f.ID))
		}
		if i == 0 {
			storeID = f.StoreID
		} else if f.StoreID != storeID {
			return 0, nil, ValidationError("all items must belong to the same store")
		}
		//カートに入れた後で価格が変わった
		if it.PriceCents != f.PriceCents {
			return 0, nil, ValidationError("items[%d].price does not match the current price of food item %d", i, f.ID)
		}

		items = append(items, model.OrderItem{
			FoodID:         f.ID,
			Name:           f.Name,
			UnitPriceCents: f.PriceCents,
			Quantity:       it.Quantity,
			Image:          f.Image,
			CreatedAt:      now,
		})
	}
	return storeID, items, nil
}

// 入力チェック。どのフィールドが悪いかをメッセージに入れる
func validatePlaceOrder(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return ValidationError("items must not be empty")
	}
	for i, it := range in.Items {
		if it.FoodID <= 0 {
			return ValidationError("items[%d].foodId is required", i)
		}
		if strings.TrimSpace(it.Name) == "" {
			return ValidationError("items[%d].name is required", i)
		}
		if it.PriceCents <= 0 {
			return ValidationError("items[%d].price must be > 0", i)
		}
		if it.Quantity < 1 {
			return ValidationError("items[%d].quantity must be >= 1", i)
		}
	}

	a := in.Address
	required := []struct {
		field string
		value string
	}{
		{"name", a.Name},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"phone", a.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return ValidationError("address.%s is required", r.field)
		}
	}

	if !model.PaymentMethod(strings.ToLower(strings.TrimSpace(in.PaymentMethod))).Valid() {
		return ValidationError("paymentMethod must be one of card, cash, upi")
	}
	return nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, customerID int64, page int, limit int) (OrderListOutput, error) {
	if customerID <= 0 {
		return OrderListOutput{}, Unauthorized("unauthorized")
	}
	page, limit, err := checkPage(page, limit)
	if err != nil {
		return OrderListOutput{}, err
	}

	orders, total, err := u.orders.ListByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		u.log.ErrorContext(ctx, "list orders failed", "customer_id", customerID, "err", err)
		return OrderListOutput{}, Internal()
	}

	outs, err := u.withItems(ctx, orders)
	if err != nil {
		return OrderListOutput{}, err
	}
	return OrderListOutput{
		Orders:     outs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, customerID int64, orderID int64) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, Unauthorized("unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, ValidationError("invalid order id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, NotFound("order not found")
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find order failed", "order_id", orderID, "err", err)
		return OrderOutput{}, Internal()
	}
	//他人の注文は「存在しない扱い」にする
	if o.CustomerID != customerID {
		return OrderOutput{}, NotFound("order not found")
	}

	items, err := u.orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		u.log.ErrorContext(ctx, "list order items failed", "order_id", orderID, "err", err)
		return OrderOutput{}, Internal()
	}
	return toOrderOutput(o, items), nil
}

func (u *OrderUsecase) withItems(ctx context.Context, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			u.log.ErrorContext(ctx, "list order items failed", "order_id", o.ID, "err", err)
			return nil, Internal()
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

// page/limitの最低限チェック（0は既定値）
func checkPage(page int, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 20
	}
	if page < 1 {
		return 0, 0, ValidationError("invalid page")
	}
	if limit < 1 || limit > 100 {
		return 0, 0, ValidationError("invalid limit")
	}
	return page, limit, nil
}

func totalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			FoodID:         it.FoodID,
			Name:           it.Name,
			UnitPriceCents: it.UnitPriceCents,
			Quantity:       it.Quantity,
			Image:          it.Image,
		})
	}

	return OrderOutput{
		ID:                       o.ID,
		OrderNumber:              o.OrderNumber,
		CustomerID:               o.CustomerID,
		StoreID:                  o.StoreID,
		Items:                    outItems,
		Address:                  o.Address,
		SubtotalCents:            o.SubtotalCents,
		DeliveryFeeCents:         o.DeliveryFeeCents,
		TaxCents:                 o.TaxCents,
		AmountCents:              o.AmountCents,
		PaymentMethod:            string(o.PaymentMethod),
		PaymentStatus:            string(o.PaymentStatus),
		OrderStatus:              string(o.OrderStatus),
		StoreNotes:               o.StoreNotes,
		EstimatedDeliveryMinutes: o.EstimatedDeliveryMinutes,
		CreatedAt:                o.CreatedAt,
		UpdatedAt:                o.UpdatedAt,
	}
}
