package repository

import (
	"context"

	"foodorder/internal/domain/model"
)

// 商品（料理）の保存・取得
type FoodRepository interface {
	FindByID(ctx context.Context, id int64) (model.FoodItem, error)
	ListByStoreID(ctx context.Context, storeID int64, onlyAvailable bool) ([]model.FoodItem, error)
	Create(ctx context.Context, f model.FoodItem) (model.FoodItem, error)
	UpdateAvailability(ctx context.Context, id int64, available bool) error
	Delete(ctx context.Context, id int64) error
}

// 店舗の保存・取得
type StoreRepository interface {
	FindByID(ctx context.Context, id int64) (model.Store, error)
	FindByEmail(ctx context.Context, email string) (model.Store, error)
	ListActive(ctx context.Context) ([]model.Store, error)
	Create(ctx context.Context, s model.Store) (model.Store, error)
}

// 顧客アカウント
type CustomerRepository interface {
	FindByID(ctx context.Context, id int64) (model.Customer, error)
	FindByEmail(ctx context.Context, email string) (model.Customer, error)
	Create(ctx context.Context, c model.Customer) (model.Customer, error)
}
