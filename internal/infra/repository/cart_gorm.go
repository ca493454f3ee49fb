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

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// 顧客のカートを行ロック付きで取得し、無ければ作成
// 呼び出し側のトランザクション内で使う（ロックはcommitまで保持）
func (r *CartGormRepository) GetOrCreateForUpdate(ctx context.Context, customerID int64) (model.Cart, error) {
	cart, err := r.findForUpdate(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, err
	}

	// 無ければ作る。同時作成で一意制約に当たったらSAVEPOINTまで戻して取り直す
	now := time.Now()
	newCart := model.Cart{
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	createErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&newCart).Error
	})
	if createErr == nil {
		return r.findForUpdate(ctx, customerID)
	}
	if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
		return model.Cart{}, createErr
	}

	cart, err = r.findForUpdate(ctx, customerID)
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (r *CartGormRepository) findForUpdate(ctx context.Context, customerID int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&cart).Error
	return cart, err
}

// 顧客のカートを取得
func (r *CartGormRepository) FindByCustomerID(ctx context.Context, customerID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// carts.store_idを更新（nilで空カート）
func (r *CartGormRepository) SetStore(ctx context.Context, cartID int64, storeID *int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"store_id":   storeID,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// カート明細を追加順に取得
func (r *CartGormRepository) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("added_at asc, id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 明細を追加（価格・名前・画像は呼び出し側でスナップショット済み）
func (r *CartGormRepository) InsertItem(ctx context.Context, item model.CartItem) error {
	if item.Quantity <= 0 {
		return errors.New("invalid quantity")
	}

	now := time.Now()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	item.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

// 明細の数量を更新
func (r *CartGormRepository) UpdateItemQuantity(ctx context.Context, cartID int64, foodID int64, qty int64) error {
	if qty <= 0 {
		return errors.New("invalid quantity")
	}

	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("cart_id = ? AND food_id = ?", cartID, foodID).
		Updates(map[string]any{
			"quantity":   qty,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteItem(ctx context.Context, cartID int64, foodID int64) error {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND food_id = ?", cartID, foodID).
		Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 複数の明細をまとめて削除（店舗切り替え時）
func (r *CartGormRepository) DeleteItems(ctx context.Context, cartID int64, foodIDs []int64) error {
	if len(foodIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND food_id IN ?", cartID, foodIDs).
		Delete(&model.CartItem{}).Error
}

// 指定カートの明細を全削除してstore_idも外す
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Cart{}).
			Where("id = ?", cartID).
			Updates(map[string]any{
				"store_id":   nil,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}

		//cart_itemsを全削除
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		return nil
	})
}
