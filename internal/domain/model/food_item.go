package model

import "time"

// 商品（料理）。価格はセント単位
type FoodItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID     int64     `gorm:"not null;index" json:"store_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	PriceCents  int64     `gorm:"not null" json:"price_cents"`
	Image       string    `gorm:"type:varchar(255)" json:"image"`
	Category    string    `gorm:"type:varchar(100);index" json:"category"`
	Available   bool      `gorm:"not null;default:true" json:"available"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
