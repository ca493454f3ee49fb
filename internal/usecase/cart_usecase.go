package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"
)

// CartUsecase は /cart の業務ロジック。
// 更新はすべてトランザクション内で顧客のカート行をロックしてから行う
type CartUsecase struct {
	tx    repo.TransactionManager
	foods repo.FoodRepository
	log   *slog.Logger
	now   func() time.Time
}

func NewCartUsecase(tx repo.TransactionManager, foods repo.FoodRepository, log *slog.Logger) *CartUsecase {
	return &CartUsecase{
		tx:    tx,
		foods: foods,
		log:   log,
		now:   time.Now,
	}
}

// price は追加時点の価格
type CartItemOutput struct {
	FoodID         int64     `json:"food_id"`
	Name           string    `json:"name"`
	Image          string    `json:"image"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int64     `json:"quantity"`
	LineTotalCents int64     `json:"line_total_cents"`
	AddedAt        time.Time `json:"added_at"`
}

type CartOutput struct {
	StoreID       *int64           `json:"store_id"`
	Items         []CartItemOutput `json:"items"`
	ItemCount     int64            `json:"item_count"`
	SubtotalCents int64            `json:"subtotal_cents"`
}

type AddCartItemOutput struct {
	Cart CartOutput `json:"cart"`
	// 別店舗の商品を入れたため消した明細
	StoreSwitched  bool    `json:"store_switched"`
	ClearedFoodIDs []int64 `json:"cleared_food_ids"`
}

type DecreaseCartItemOutput struct {
	Cart    CartOutput `json:"cart"`
	Removed bool       `json:"removed"`
}

// GetCart はカート取得（無ければ作って空を返す）
func (u *CartUsecase) GetCart(ctx context.Context, customerID int64) (CartOutput, error) {
	if customerID <= 0 {
		return CartOutput{}, Unauthorized("unauthorized")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, customerID)
		if err != nil {
			return u.dbError(ctx, "get cart", err)
		}
		items, err := r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}
		out = toCartOutput(cart, items)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

type AddCartItemInput struct {
	FoodID int64
	// 省略時は1
	Quantity *int64
}

// AddItem はカートに追加（同一商品は数量加算、別店舗なら先に全消し）
func (u *CartUsecase) AddItem(ctx context.Context, customerID int64, in AddCartItemInput) (AddCartItemOutput, error) {
	if customerID <= 0 {
		return AddCartItemOutput{}, Unauthorized("unauthorized")
	}
	foodID := in.FoodID
	if foodID <= 0 {
		return AddCartItemOutput{}, ValidationError("invalid food id")
	}
	quantity := int64(1)
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	if quantity < 1 {
		return AddCartItemOutput{}, ValidationError("quantity must be >= 1")
	}

	// 商品チェック
	food, err := u.foods.FindByID(ctx, foodID)
	if errors.Is(err, repo.ErrNotFound) {
		return AddCartItemOutput{}, NotFound(fmt.Sprintf("food item %d not found", foodID))
	}
	if err != nil {
		return AddCartItemOutput{}, u.dbError(ctx, "find food", err)
	}
	if !food.Available {
		return AddCartItemOutput{}, PreconditionFailed(fmt.Sprintf("food item %d is not available", foodID))
	}

	out := AddCartItemOutput{ClearedFoodIDs: []int64{}}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, customerID)
		if err != nil {
			return u.dbError(ctx, "get cart", err)
		}
		items, err := r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}

		//別店舗の明細を先に消す
		if foreign := model.ForeignItems(items, food.StoreID); len(foreign) > 0 {
			ids := make([]int64, 0, len(foreign))
			for _, it := range foreign {
				ids = append(ids, it.FoodID)
			}
			if err := r.Carts().DeleteItems(ctx, cart.ID, ids); err != nil {
				return u.dbError(ctx, "clear foreign items", err)
			}
			out.StoreSwitched = true
			out.ClearedFoodIDs = ids
			items = nil
		}

		existing, ok := model.ItemsByFood(items)[foodID]
		if ok {
			if err := r.Carts().UpdateItemQuantity(ctx, cart.ID, foodID, existing.Quantity+quantity); err != nil {
				return u.dbError(ctx, "update cart item", err)
			}
		} else {
			//追加時点の価格・名前・画像を保存
			if err := r.Carts().InsertItem(ctx, model.CartItem{
				CartID:         cart.ID,
				FoodID:         food.ID,
				StoreID:        food.StoreID,
				Quantity:       quantity,
				UnitPriceCents: food.PriceCents,
				Name:           food.Name,
				Image:          food.Image,
				AddedAt:        u.now(),
			}); err != nil {
				return u.dbError(ctx, "insert cart item", err)
			}
		}

		if cart.StoreID == nil || *cart.StoreID != food.StoreID {
			storeID := food.StoreID
			if err := r.Carts().SetStore(ctx, cart.ID, &storeID); err != nil {
				return u.dbError(ctx, "set cart store", err)
			}
			cart.StoreID = &storeID
		}

		items, err = r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}
		out.Cart = toCartOutput(cart, items)
		return nil
	})
	if err != nil {
		return AddCartItemOutput{}, err
	}

	if out.StoreSwitched {
		u.log.InfoContext(ctx, "cart store switched",
			"customer_id", customerID,
			"store_id", food.StoreID,
			"cleared_food_ids", out.ClearedFoodIDs,
		)
	}
	return out, nil
}

// DecreaseItem は数量を1減らす。1なら明細ごと消す
func (u *CartUsecase) DecreaseItem(ctx context.Context, customerID int64, foodID int64) (DecreaseCartItemOutput, error) {
	if customerID <= 0 {
		return DecreaseCartItemOutput{}, Unauthorized("unauthorized")
	}
	if foodID <= 0 {
		return DecreaseCartItemOutput{}, ValidationError("invalid food id")
	}

	var out DecreaseCartItemOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, customerID)
		if err != nil {
			return u.dbError(ctx, "get cart", err)
		}
		items, err := r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}

		existing, ok := model.ItemsByFood(items)[foodID]
		if !ok {
			return NotFound(fmt.Sprintf("food item %d is not in cart", foodID))
		}

		if existing.Quantity > 1 {
			if err := r.Carts().UpdateItemQuantity(ctx, cart.ID, foodID, existing.Quantity-1); err != nil {
				return u.dbError(ctx, "update cart item", err)
			}
		} else {
			if err := u.deleteItem(ctx, r, cart, foodID); err != nil {
				return err
			}
			out.Removed = true
		}

		items, err = r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}
		if len(items) == 0 {
			cart.StoreID = nil
		}
		out.Cart = toCartOutput(cart, items)
		return nil
	})
	if err != nil {
		return DecreaseCartItemOutput{}, err
	}
	return out, nil
}

// RemoveItem は数量に関係なく明細を消す
func (u *CartUsecase) RemoveItem(ctx context.Context, customerID int64, foodID int64) (CartOutput, error) {
	if customerID <= 0 {
		return CartOutput{}, Unauthorized("unauthorized")
	}
	if foodID <= 0 {
		return CartOutput{}, ValidationError("invalid food id")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, customerID)
		if err != nil {
			return u.dbError(ctx, "get cart", err)
		}
		if err := u.deleteItem(ctx, r, cart, foodID); err != nil {
			return err
		}

		items, err := r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}
		if len(items) == 0 {
			cart.StoreID = nil
		}
		out = toCartOutput(cart, items)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

// Clear はカートを空にする（管理ツール用）。監査ログも残す
func (u *CartUsecase) Clear(ctx context.Context, customerID int64) (CartOutput, error) {
	if customerID <= 0 {
		return CartOutput{}, ValidationError("invalid customer id")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, customerID)
		if err != nil {
			return u.dbError(ctx, "get cart", err)
		}
		items, err := r.Carts().ListItems(ctx, cart.ID)
		if err != nil {
			return u.dbError(ctx, "list cart items", err)
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return u.dbError(ctx, "clear cart", err)
		}

		before := model.TotalsOf(items)
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    model.AuditActorSystem,
			Action:       model.AuditActionCartCleared,
			ResourceType: model.AuditResourceCart,
			ResourceID:   cart.ID,
			BeforeJSON:   fmt.Sprintf(`{"item_count":%d,"subtotal_cents":%d}`, before.ItemCount, before.SubtotalCents),
			AfterJSON:    `{"item_count":0,"subtotal_cents":0}`,
			CreatedAt:    u.now(),
		}); err != nil {
			return u.dbError(ctx, "create audit log", err)
		}

		cart.StoreID = nil
		out = toCartOutput(cart, nil)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

// 明細削除。最後の1件ならカートの店舗も外す
func (u *CartUsecase) deleteItem(ctx context.Context, r repo.TxRepos, cart model.Cart, foodID int64) error {
	err := r.Carts().DeleteItem(ctx, cart.ID, foodID)
	if errors.Is(err, repo.ErrNotFound) {
		return NotFound(fmt.Sprintf("food item %d is not in cart", foodID))
	}
	if err != nil {
		return u.dbError(ctx, "delete cart item", err)
	}

	rest, err := r.Carts().ListItems(ctx, cart.ID)
	if err != nil {
		return u.dbError(ctx, "list cart items", err)
	}
	if len(rest) == 0 && cart.StoreID != nil {
		if err := r.Carts().SetStore(ctx, cart.ID, nil); err != nil {
			return u.dbError(ctx, "reset cart store", err)
		}
	}
	return nil
}

func (u *CartUsecase) dbError(ctx context.Context, op string, err error) error {
	u.log.ErrorContext(ctx, op+" failed", "err", err)
	return Internal()
}

// 注文確定・決済確定時にカートを空にする（同じトランザクション内で使う）
func clearCustomerCart(ctx context.Context, r repo.TxRepos, customerID int64) error {
	cart, err := r.Carts().FindByCustomerID(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.Carts().Clear(ctx, cart.ID)
}

func toCartOutput(cart model.Cart, items []model.CartItem) CartOutput {
	outItems := make([]CartItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, CartItemOutput{
			FoodID:         it.FoodID,
			Name:           it.Name,
			Image:          it.Image,
			UnitPriceCents: it.UnitPriceCents,
			Quantity:       it.Quantity,
			LineTotalCents: it.UnitPriceCents * it.Quantity,
			AddedAt:        it.AddedAt,
		})
	}

	totals := model.TotalsOf(items)
	return CartOutput{
		StoreID:       cart.StoreID,
		Items:         outItems,
		ItemCount:     totals.ItemCount,
		SubtotalCents: totals.SubtotalCents,
	}
}
