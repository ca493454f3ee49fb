package model

import "time"

// 1顧客につきカートは1つ。
// StoreIDは明細がすべて属している店舗（空カートならnil）
type Cart struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID int64     `gorm:"not null;uniqueIndex" json:"customer_id"`
	StoreID    *int64    `gorm:"index" json:"store_id"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// CartTotals はカートの集計値
type CartTotals struct {
	ItemCount     int64 `json:"item_count"`
	SubtotalCents int64 `json:"subtotal_cents"`
}

func TotalsOf(items []CartItem) CartTotals {
	var t CartTotals
	for _, it := range items {
		t.ItemCount += it.Quantity
		t.SubtotalCents += it.UnitPriceCents * it.Quantity
	}
	return t
}

// ItemsByFood は明細を food_id で引けるようにする
func ItemsByFood(items []CartItem) map[int64]CartItem {
	m := make(map[int64]CartItem, len(items))
	for _, it := range items {
		m[it.FoodID] = it
	}
	return m
}

// ForeignItems はstoreID以外の店舗の明細を返す（店舗切り替え時に消す対象）
func ForeignItems(items []CartItem, storeID int64) []CartItem {
	var out []CartItem
	for _, it := range items {
		if it.StoreID != storeID {
			out = append(out, it)
		}
	}
	return out
}
