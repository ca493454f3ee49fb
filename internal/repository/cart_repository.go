package repository

import (
	"context"

	"foodorder/internal/domain/model"
)

type CartRepository interface {
	// 顧客のカートを行ロック付きで取得し、無ければ作成
	GetOrCreateForUpdate(ctx context.Context, customerID int64) (model.Cart, error)
	FindByCustomerID(ctx context.Context, customerID int64) (model.Cart, error)
	SetStore(ctx context.Context, cartID int64, storeID *int64) error

	ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error)
	InsertItem(ctx context.Context, item model.CartItem) error
	UpdateItemQuantity(ctx context.Context, cartID int64, foodID int64, qty int64) error
	DeleteItem(ctx context.Context, cartID int64, foodID int64) error
	DeleteItems(ctx context.Context, cartID int64, foodIDs []int64) error

	// 明細を全削除してstore_idも外す
	Clear(ctx context.Context, cartID int64) error
}
