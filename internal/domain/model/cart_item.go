package model

import "time"

// カートの明細
// 追加時点の価格・名前・画像を必ず保存。
type CartItem struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID         int64     `gorm:"not null;uniqueIndex:ux_cart_items_cart_food" json:"cart_id"`
	FoodID         int64     `gorm:"not null;uniqueIndex:ux_cart_items_cart_food" json:"food_id"`
	StoreID        int64     `gorm:"not null;index" json:"store_id"`
	Quantity       int64     `gorm:"not null" json:"quantity"`
	UnitPriceCents int64     `gorm:"not null;column:unit_price_cents" json:"unit_price_cents"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Image          string    `gorm:"type:varchar(255)" json:"image"`
	AddedAt        time.Time `gorm:"not null" json:"added_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
