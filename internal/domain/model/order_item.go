package model

import "time"

// 注文明細。カタログ側の価格が後で変わっても影響しない
type OrderItem struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        int64     `gorm:"not null;index" json:"order_id"`
	FoodID         int64     `gorm:"not null;index" json:"food_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	UnitPriceCents int64     `gorm:"not null" json:"unit_price_cents"`
	Quantity       int64     `gorm:"not null" json:"quantity"`
	Image          string    `gorm:"type:varchar(255)" json:"image"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
